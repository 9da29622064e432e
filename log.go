// log.go: Package logger.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package zeyra

import (
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	loggerMu      sync.RWMutex
	packageLogger logrus.FieldLogger = newDefaultLogger()
)

func newDefaultLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.WarnLevel)
	return l
}

// SetLogger replaces the logger used by clusters and agents that were not
// given one through WithLogger. A nil logger restores the default.
func SetLogger(l logrus.FieldLogger) {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	if l == nil {
		l = newDefaultLogger()
	}
	packageLogger = l
}

// Logger returns the current package logger.
func Logger() logrus.FieldLogger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return packageLogger
}
