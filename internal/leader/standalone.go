package leader

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Compile-time interface compliance check.
var _ Elector = (*standalone)(nil)

// standalone is an Elector for single-replica deployments without Redis.
type standalone struct {
	log logrus.FieldLogger
	id  string
}

// NewStandalone returns an Elector that always leads.
func NewStandalone(log logrus.FieldLogger) Elector {
	return &standalone{
		log: log.WithField("component", "leader"),
		id:  uuid.New().String(),
	}
}

func (s *standalone) Start(_ context.Context) error {
	s.log.WithField("instance_id", s.id).Info("Leader election disabled, running standalone")

	return nil
}

func (s *standalone) Stop() error {
	return nil
}

func (s *standalone) IsLeader() bool {
	return true
}

func (s *standalone) ID() string {
	return s.id
}
