package memstore

import (
	"maps"
	"slices"

	"github.com/shaiso/Relay/internal/domain"
)

func cloneRun(r *domain.Run) *domain.Run {
	c := *r
	c.Source = slices.Clone(r.Source)
	c.Context = maps.Clone(r.Context)
	return &c
}

func cloneStep(s *domain.Step) *domain.Step {
	c := *s
	c.Data = maps.Clone(s.Data)
	c.Context = maps.Clone(s.Context)
	return &c
}

func cloneTimer(t *domain.Timer) *domain.Timer {
	c := *t
	c.Data = maps.Clone(t.Data)
	return &c
}
