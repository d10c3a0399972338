package cdpcore

import "github.com/sirupsen/logrus"

// LogFunc is the logging capability threaded through every component, kept
// in the same shape as the teacher's logf/errf funcs: components never
// import a logging package directly, they call an injected LogFunc.
type LogFunc func(string, ...interface{})

// defaultLogger backs the package-level default LogFunc values. Callers
// that want their own logging pipeline should supply WithLogf/WithErrorf
// instead of reconfiguring this logger.
var defaultLogger = logrus.New()

func newDefaultLogf() LogFunc {
	return func(s string, v ...interface{}) { defaultLogger.Infof(s, v...) }
}

func newDefaultErrf() LogFunc {
	return func(s string, v ...interface{}) { defaultLogger.Errorf(s, v...) }
}

func nopLogf(string, ...interface{}) {}
