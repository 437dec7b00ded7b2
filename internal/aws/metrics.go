package aws

import (
	"context"
	"log"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

// MetricEmitter pushes checkout outcome counts to CloudWatch. Emission is
// best-effort: a metrics failure never fails a checkout.
type MetricEmitter struct {
	client    CloudWatchAPI
	namespace string
	nowFunc   func() time.Time
}

func NewMetricEmitter(client CloudWatchAPI, namespace string) *MetricEmitter {
	return &MetricEmitter{
		client:    client,
		namespace: namespace,
		nowFunc:   time.Now,
	}
}

// RecordCheckoutResult emits one CheckoutResult datum with the result
// ("success", "validation", "insufficient_stock", "conflict", "internal")
// as a dimension.
func (m *MetricEmitter) RecordCheckoutResult(ctx context.Context, result string) {
	now := m.nowFunc()
	value := 1.0
	metricName := "CheckoutResult"

	_, err := m.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace: &m.namespace,
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: &metricName,
				Timestamp:  &now,
				Value:      &value,
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: []cwtypes.Dimension{
					{
						Name:  awsString("Result"),
						Value: &result,
					},
				},
			},
		},
	})
	if err != nil {
		log.Printf("[metrics] put metric data failed: %v", err)
	}
}
