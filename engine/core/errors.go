package core

import (
	"errors"
)

var (
	ErrRegistryNotFound = errors.New("registry: object not found")
	ErrQueueFull        = errors.New("queue is full")
	ErrQueueEmpty       = errors.New("queue is empty")
)
