package goroutine

import (
	"context"
	"runtime/debug"

	"github.com/sirupsen/logrus"

	"github.com/mkachanov/marketplace-backend/internal/logger"
)

// SafeGo запускает горутину с обработкой panic. Используется для
// fire-and-forget задач (уведомления сторон сделки): паника в них не
// должна ронять процесс и тем более откатывать уже закоммиченный расчёт.
func SafeGo(fn func()) {
	go func() {
		defer recoverPanic()
		fn()
	}()
}

// SafeGoWithContext запускает горутину с контекстом и обработкой panic.
func SafeGoWithContext(ctx context.Context, fn func(context.Context)) {
	go func() {
		defer recoverPanic()
		fn(ctx)
	}()
}

func recoverPanic() {
	if r := recover(); r != nil {
		l := logger.Log
		if l == nil {
			l = logrus.StandardLogger()
		}
		l.WithFields(logrus.Fields{
			"panic": r,
			"stack": string(debug.Stack()),
		}).Error("panic в фоновой горутине")
	}
}
