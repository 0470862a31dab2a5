package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoApplication(t *testing.T) {
	ctx := WithApplication(context.Background(), nil)

	ctx, end := StartTransaction(ctx, "test")
	defer end()

	RecordCount(ctx, "count", 1)
	RecordDuration(ctx, "duration", time.Second)
	RecordEvent(ctx, TransactionProcessedEventName, map[string]interface{}{"ok": true})

	tracer := TraceMethodCall(ctx, "metrics", "TestNoApplication")
	assert.Nil(t, tracer)
	tracer.AddAttribute("key", "value")
	tracer.OnError(errors.New("ignored"))
	tracer.End()
}

func TestFlattenEntry(t *testing.T) {
	e := logrus.NewEntry(logrus.New())
	e.Message = "hello"
	assert.Equal(t, "hello", flattenEntry(e))

	e = e.WithField("batch_id", "LOT-A").WithError(errors.New("boom"))
	e.Message = "hello"
	assert.Equal(t, `message="hello", error="boom", data={"batch_id":"LOT-A"}`, flattenEntry(e))
}

func TestLogFormatter_NoApplication(t *testing.T) {
	f := NewLogFormatter(nil, &logrus.TextFormatter{DisableTimestamp: true})

	e := logrus.NewEntry(logrus.New())
	e.Message = "hello"
	e.Level = logrus.InfoLevel

	out, err := f.Format(e)
	require.NoError(t, err)
	assert.Equal(t, "level=info msg=hello\n", string(out))
}
