package storage

import "videoproc/internal/ports"

// Provider is the object store contract used by the API and the worker.
type Provider = ports.ObjectStore
