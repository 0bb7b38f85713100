package observability

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"go.uber.org/zap"
)

// publishTimeout bounds one PutMetricData call.
const publishTimeout = 2 * time.Second

// MetricPutter is the slice of the CloudWatch client the publisher needs.
type MetricPutter interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// CloudWatchPublisher pushes the view metrics to CloudWatch. A Lambda
// deployment is never scraped, so it publishes these instead of relying
// on /metrics.
type CloudWatchPublisher struct {
	namespace string
	client    MetricPutter
	logger    *zap.Logger
	now       func() time.Time
}

// NewCloudWatchPublisher creates a publisher for the given namespace.
func NewCloudWatchPublisher(namespace string, client MetricPutter, logger *zap.Logger) *CloudWatchPublisher {
	return &CloudWatchPublisher{namespace: namespace, client: client, logger: logger, now: time.Now}
}

// RecordMutation publishes one NodeMutation count.
func (p *CloudWatchPublisher) RecordMutation(view, operation, outcome string) {
	dims := []types.Dimension{
		dimension("View", view),
		dimension("Operation", operation),
		dimension("Outcome", outcome),
	}
	p.put(p.datum("NodeMutation", dims, 1, types.StandardUnitCount))
}

// RecordRender publishes the build time and node count of one mind map.
func (p *CloudWatchPublisher) RecordRender(view string, nodes int, duration time.Duration) {
	dims := []types.Dimension{dimension("View", view)}
	p.put(
		p.datum("RenderDuration", dims, float64(duration.Milliseconds()), types.StandardUnitMilliseconds),
		p.datum("RenderNodes", dims, float64(nodes), types.StandardUnitCount),
	)
}

func (p *CloudWatchPublisher) datum(name string, dims []types.Dimension, value float64, unit types.StandardUnit) types.MetricDatum {
	return types.MetricDatum{
		MetricName: aws.String(name),
		Dimensions: dims,
		Value:      aws.Float64(value),
		Unit:       unit,
		Timestamp:  aws.Time(p.now()),
	}
}

func (p *CloudWatchPublisher) put(data ...types.MetricDatum) {
	if p.client == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	_, err := p.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(p.namespace),
		MetricData: data,
	})
	if err != nil {
		// Metrics never fail the request that produced them.
		p.logger.Warn("Failed to publish metrics",
			zap.String("namespace", p.namespace),
			zap.String("metric", aws.ToString(data[0].MetricName)),
			zap.Error(err),
		)
	}
}

func dimension(name, value string) types.Dimension {
	return types.Dimension{Name: aws.String(name), Value: aws.String(value)}
}

// ViewRecorder receives the service's mutation and render metrics.
type ViewRecorder interface {
	RecordMutation(view, operation, outcome string)
	RecordRender(view string, nodes int, duration time.Duration)
}

// Tee sends every recording to each of rs in order.
func Tee(rs ...ViewRecorder) ViewRecorder {
	return tee(rs)
}

type tee []ViewRecorder

func (t tee) RecordMutation(view, operation, outcome string) {
	for _, r := range t {
		r.RecordMutation(view, operation, outcome)
	}
}

func (t tee) RecordRender(view string, nodes int, duration time.Duration) {
	for _, r := range t {
		r.RecordRender(view, nodes, duration)
	}
}
