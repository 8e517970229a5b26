// Package tasks defines background task types shared by the queue
// producers and the worker.
package tasks

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

// Task type identifiers. Producers and consumers must agree on these.
const (
	TypeStorageReconcile = "storage:reconcile"
)

// StorageReconcilePayload scopes one reconciliation sweep.
type StorageReconcilePayload struct {
	Prefix string `json:"prefix"`
}

// NewStorageReconcileTask builds a sweep over the given object prefix.
func NewStorageReconcileTask(prefix string) (*asynq.Task, error) {
	payload, err := json.Marshal(StorageReconcilePayload{Prefix: prefix})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeStorageReconcile, payload), nil
}
