// Package tlmt emits anonymous operational events (user creations, bulk
// imports, searches). Events are advisory: senders must tolerate every
// failure.
package tlmt

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/shirou/gopsutil/v4/host"
)

var (
	once     sync.Once
	instance identity
)

type Event struct {
	InstanceID string
	Name       string
	Properties map[string]any
}

// NewEvent builds an event carrying the process instance id and host
// metadata merged with props.
func NewEvent(name string, props map[string]any) Event {
	id := instanceIdentity()

	ev := Event{
		InstanceID: id.id,
		Name:       name,
		Properties: make(map[string]any, len(id.meta)+len(props)),
	}

	for k, v := range id.meta {
		ev.Properties[k] = v
	}

	for k, v := range props {
		ev.Properties[k] = v
	}

	return ev
}

type Telemetry interface {
	Send(ctx context.Context, event Event) error
	Close() error
}

type identity struct {
	id   string
	meta map[string]any
}

// instanceIdentity returns a per-process anonymous id with coarse host
// metadata. No network calls; the id is fresh on every start.
func instanceIdentity() identity {
	once.Do(func() {
		meta := make(map[string]any)

		if info, err := host.Info(); err == nil {
			meta["os"] = info.OS
			meta["platform"] = info.Platform
			meta["platform_version"] = info.PlatformVersion
		}

		instance.id = uuid.New().String()
		instance.meta = meta
	})

	return instance
}
