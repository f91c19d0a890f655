package logger

import (
	"io"

	"github.com/sirupsen/logrus"
)

// Instance is embedded by components that log. Log carries a module field.
type Instance struct {
	Log *logrus.Entry
}

// MakeInstance tags base with module.
func MakeInstance(base *logrus.Logger, module string) Instance {
	return Instance{
		Log: base.WithField("module", module),
	}
}

// Named derives an instance for a sub-component.
func (i Instance) Named(module string) Instance {
	return Instance{
		Log: i.Log.WithField("module", module),
	}
}

// Discard returns an instance that drops everything, for tests.
func Discard() Instance {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return MakeInstance(log, "test")
}
