package aws

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

// MetricsEmitter publishes counters for order lifecycle events.
type MetricsEmitter struct {
	client    CloudWatchAPI
	namespace string
	nowFunc   func() time.Time
}

// NewMetricsEmitter returns an emitter bound to a CloudWatch namespace.
func NewMetricsEmitter(client CloudWatchAPI, namespace string) *MetricsEmitter {
	return &MetricsEmitter{
		client:    client,
		namespace: namespace,
		nowFunc:   time.Now,
	}
}

// metric names per event type; unknown types fall through to a catch-all.
var eventMetricNames = map[string]string{
	"order_created": "OrderCreated",
	"order_updated": "OrderUpdated",
	"order_deleted": "OrderDeleted",
	"comment_added": "CommentAdded",
}

// CountEvent records a single occurrence of an order event. status may be empty;
// when set it is attached as a Status dimension.
func (m *MetricsEmitter) CountEvent(ctx context.Context, eventType, status string) error {
	name, ok := eventMetricNames[eventType]
	if !ok {
		name = "OrderEvent"
	}

	datum := cwtypes.MetricDatum{
		MetricName: &name,
		Value:      awsFloat64(1),
		Unit:       cwtypes.StandardUnitCount,
		Timestamp:  awsTime(m.nowFunc().UTC()),
	}
	if status != "" {
		datum.Dimensions = []cwtypes.Dimension{
			{Name: awsString("Status"), Value: &status},
		}
	}

	input := &cloudwatch.PutMetricDataInput{
		Namespace:  &m.namespace,
		MetricData: []cwtypes.MetricDatum{datum},
	}

	if _, err := m.client.PutMetricData(ctx, input); err != nil {
		return fmt.Errorf("put metric data: %w", err)
	}
	return nil
}

func awsFloat64(f float64) *float64  { return &f }
func awsTime(t time.Time) *time.Time { return &t }
