package rabbitmq

import (
	"encoding/json"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/require"
)

func TestQueueNames(t *testing.T) {
	require.Equal(t, "content_generation_jobs.retry", RetryQueue("content_generation_jobs"))
	require.Equal(t, "content_generation_jobs.dlq", DeadLetterQueue("content_generation_jobs"))
}

func TestJobMessageWireFormat(t *testing.T) {
	b, err := json.Marshal(JobMessage{JobID: "01HZX"})
	require.NoError(t, err)
	require.JSONEq(t, `{"job_id":"01HZX"}`, string(b))
}

func TestRetryCount(t *testing.T) {
	require.Zero(t, RetryCount(nil))
	require.Zero(t, RetryCount(amqp.Table{"other": int32(2)}))
	require.Equal(t, 2, RetryCount(amqp.Table{RetryCountHeader: int32(2)}))
	require.Equal(t, 3, RetryCount(amqp.Table{RetryCountHeader: int64(3)}))
}

func TestRetryPublishing(t *testing.T) {
	msg, err := retryPublishing("01HZX", 2, 30*time.Second)
	require.NoError(t, err)
	require.Equal(t, "30000", msg.Expiration)
	require.Equal(t, amqp.Persistent, msg.DeliveryMode)
	require.Equal(t, 2, RetryCount(msg.Headers))
	require.JSONEq(t, `{"job_id":"01HZX"}`, string(msg.Body))

	msg, err = retryPublishing("01HZX", 1, 0)
	require.NoError(t, err)
	require.Equal(t, "1", msg.Expiration)
}
