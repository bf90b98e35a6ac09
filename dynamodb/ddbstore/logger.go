package ddbstore

import (
	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"
)

// ZapLogger adapts a zap logger to badger's logging interface.
func ZapLogger(l *zap.Logger) badger.Logger {
	return zapBadger{l.Named("badger").Sugar()}
}

type zapBadger struct {
	s *zap.SugaredLogger
}

func (z zapBadger) Errorf(f string, v ...any)   { z.s.Errorf(f, v...) }
func (z zapBadger) Warningf(f string, v ...any) { z.s.Warnf(f, v...) }
func (z zapBadger) Infof(f string, v ...any)    { z.s.Infof(f, v...) }
func (z zapBadger) Debugf(f string, v ...any)   { z.s.Debugf(f, v...) }
