// Copyright (c) 2020-2023, The OTNS Authors.
// All rights reserved.
//
// Redistribution and use in source and binary forms, with or without
// modification, are permitted provided that the following conditions are met:
// 1. Redistributions of source code must retain the above copyright
//    notice, this list of conditions and the following disclaimer.
// 2. Redistributions in binary form must reproduce the above copyright
//    notice, this list of conditions and the following disclaimer in the
//    documentation and/or other materials provided with the distribution.
// 3. Neither the name of the copyright holder nor the
//    names of its contributors may be used to endorse or promote products
//    derived from this software without specific prior written permission.
//
// THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND CONTRIBUTORS "AS IS"
// AND ANY EXPRESS OR IMPLIED WARRANTIES, INCLUDING, BUT NOT LIMITED TO, THE
// IMPLIED WARRANTIES OF MERCHANTABILITY AND FITNESS FOR A PARTICULAR PURPOSE
// ARE DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT HOLDER OR CONTRIBUTORS BE
// LIABLE FOR ANY DIRECT, INDIRECT, INCIDENTAL, SPECIAL, EXEMPLARY, OR
// CONSEQUENTIAL DAMAGES (INCLUDING, BUT NOT LIMITED TO, PROCUREMENT OF
// SUBSTITUTE GOODS OR SERVICES; LOSS OF USE, DATA, OR PROFITS; OR BUSINESS
// INTERRUPTION) HOWEVER CAUSED AND ON ANY THEORY OF LIABILITY, WHETHER IN
// CONTRACT, STRICT LIABILITY, OR TORT (INCLUDING NEGLIGENCE OR OTHERWISE)
// ARISING IN ANY WAY OUT OF THE USE OF THIS SOFTWARE, EVEN IF ADVISED OF THE
// POSSIBILITY OF SUCH DAMAGE.

// Package logger wraps zap with the fixed "[timestamp] LEVEL: message" line
// shape the medium server writes to stdout.
package logger

import (
	"fmt"
	"os"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level is the server-wide log level. Lower values are more severe.
type Level int8

const (
	TraceLevel   Level = 5
	DebugLevel   Level = 4
	InfoLevel    Level = 3
	WarnLevel    Level = 2
	ErrorLevel   Level = 1
	FatalLevel   Level = 0
	OffLevel     Level = -1
	MinLevel           = OffLevel
	DefaultLevel       = InfoLevel
)

var levelNames = map[Level]string{
	TraceLevel: "TRACE",
	DebugLevel: "DEBUG",
	InfoLevel:  "INFO",
	WarnLevel:  "WARN",
	ErrorLevel: "ERROR",
	FatalLevel: "FATAL",
}

var zapLevels = map[Level]zapcore.Level{
	TraceLevel: zapcore.DebugLevel,
	DebugLevel: zapcore.DebugLevel,
	InfoLevel:  zapcore.InfoLevel,
	WarnLevel:  zapcore.WarnLevel,
	ErrorLevel: zapcore.ErrorLevel,
	FatalLevel: zapcore.FatalLevel,
}

var (
	zaplogger    *zap.Logger
	currentLevel Level
)

func init() {
	currentLevel = DefaultLevel
	rebuild()
}

func rebuild() {
	if zaplogger != nil {
		_ = zaplogger.Sync()
	}
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
			MessageKey: "M",
			LineEnding: "\n",
		}),
		zapcore.AddSync(os.Stdout),
		zapcore.Level(-128), // accept everything here; our own level check gates output below
	)
	zaplogger = zap.New(core)
}

// SetLevel sets the server-wide log level.
func SetLevel(lv Level) { currentLevel = lv }

// GetLevel returns the server-wide log level.
func GetLevel() Level { return currentLevel }

// line renders the fixed "[timestamp] LEVEL: message" shape the wire
// protocol requires on stdout.
func line(level Level, msg string) string {
	return fmt.Sprintf("[%s] %s: %s", time.Now().Format(time.RFC3339Nano), levelNames[level], msg)
}

func logf(level Level, format string, args []interface{}) {
	if level > currentLevel {
		return
	}
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	zaplogger.Check(zapLevels[level], line(level, msg)).Write()
}

func Tracef(format string, args ...interface{}) { logf(TraceLevel, format, args) }
func Debugf(format string, args ...interface{}) { logf(DebugLevel, format, args) }
func Infof(format string, args ...interface{})  { logf(InfoLevel, format, args) }
func Warnf(format string, args ...interface{})  { logf(WarnLevel, format, args) }
func Errorf(format string, args ...interface{}) { logf(ErrorLevel, format, args) }
func Fatalf(format string, args ...interface{}) { logf(FatalLevel, format, args) }

// PanicIfError logs err through Fatalf if it is non-nil. Reserved for the
// single server condition that is fatal at startup: a listener bind
// failure. The fatal-level zap entry ends the process once written, so the
// panic below is reached only when logging is switched off (OffLevel).
func PanicIfError(err error, msg string) {
	if err == nil {
		return
	}
	Fatalf("%s: %v", msg, err)
	panic(err)
}

type assertLogger struct{}

func (assertLogger) Errorf(format string, args ...interface{}) { Fatalf(format, args...) }

// AssertTrue reports a false value through Fatalf, which ends the process
// unless logging is switched off (OffLevel); it returns value. Used for
// invariants that should never fail in production but are worth asserting
// cheaply.
func AssertTrue(value bool, msgAndArgs ...interface{}) bool {
	return assert.True(assertLogger{}, value, msgAndArgs...)
}
