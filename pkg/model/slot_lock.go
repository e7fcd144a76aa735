package model

import "time"

// SlotLock is an advisory lock document. Its _id carries the lock key
// (vehicle or group scoped); a unique-index insert either takes the lock or
// fails with a duplicate key error. ExpiresAt backs a TTL index so crashed
// holders cannot wedge a slot.
type SlotLock struct {
	ID        string    `bson:"_id" json:"id"`
	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}
