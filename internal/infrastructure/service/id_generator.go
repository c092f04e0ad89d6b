package service

import "github.com/google/uuid"

// UUIDGenerator implements command.IDGenerator with random UUIDs.
type UUIDGenerator struct{}

// NewIDGenerator creates a new UUIDGenerator.
func NewIDGenerator() *UUIDGenerator {
	return &UUIDGenerator{}
}

// NewID returns a fresh UUID in string form.
func (g *UUIDGenerator) NewID() string {
	return uuid.New().String()
}
