package commands

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/flockwatch/internal/domain/models"
	"github.com/mamadbah2/flockwatch/internal/service/aggregation"
)

type fakeAggregator struct {
	submissions []aggregation.Submission
	batch       models.Batch
	err         error
}

func (f *fakeAggregator) SubmitReport(_ context.Context, sub aggregation.Submission) (aggregation.Result, error) {
	if f.err != nil {
		return aggregation.Result{}, f.err
	}
	f.submissions = append(f.submissions, sub)
	return aggregation.Result{Batch: f.batch}, nil
}

func (f *fakeAggregator) GetBatch(_ context.Context, id string) (models.Batch, error) {
	if f.err != nil {
		return models.Batch{}, f.err
	}
	b := f.batch
	b.ID = id
	return b, nil
}

func sampleBatch() models.Batch {
	b := models.Batch{
		ID:             "B-1",
		Name:           "House 1",
		BirdCount:      1000,
		TotalMortality: 20,
		HealthScore:    80,
		FeedUsed:       50,
		FeedEfficiency: 0.03,
		Status:         models.BatchActive,
	}
	b.Reconcile()
	return b
}

func TestHandleCommand_Submissions(t *testing.T) {
	cases := []struct {
		message string
		want    aggregation.Submission
		reply   string
	}{
		{
			message: "/mortality B-1 20 heat stress",
			want: aggregation.Submission{BatchID: "B-1", ReportType: models.ReportMortality,
				Fields: map[string]any{"deathCount": 20, "cause": "heat stress"}},
			reply: "Mortality logged for House 1: 20 birds. Total 20, remaining 980, rate 2.00%. Health Good (80).",
		},
		{
			message: "/feed B-1 50 2.1",
			want: aggregation.Submission{BatchID: "B-1", ReportType: models.ReportFeed,
				Fields: map[string]any{"feedAmount": 50.0, "averageWeight": 2.1}},
			reply: "Feed usage saved for House 1: 50 kg. Total 50.00 kg, FCR 0.03.",
		},
		{
			message: "/vaccine B-1 1 newcastle",
			want: aggregation.Submission{BatchID: "B-1", ReportType: models.ReportVaccination,
				Fields: map[string]any{"vaccinationCount": 1, "vaccine": "newcastle"}},
		},
		{
			message: "/health B-1 poor",
			want: aggregation.Submission{BatchID: "B-1", ReportType: models.ReportDaily,
				Fields: map[string]any{"overallHealth": "Poor"},
				Meta:   aggregation.Meta{UrgencyLevel: models.UrgencyHigh}},
		},
	}

	for _, tc := range cases {
		t.Run(tc.message, func(t *testing.T) {
			agg := &fakeAggregator{batch: sampleBatch()}
			svc := NewService(agg, nil)

			reply, err := svc.HandleCommand(context.Background(), models.ParseCommand(tc.message), "224600000000")
			require.NoError(t, err)
			require.Len(t, agg.submissions, 1)

			tc.want.Meta.SubmittedBy = "224600000000"
			assert.Equal(t, tc.want, agg.submissions[0])
			if tc.reply != "" {
				assert.Equal(t, tc.reply, reply)
			}
		})
	}
}

func TestHandleCommand_Status(t *testing.T) {
	svc := NewService(&fakeAggregator{batch: sampleBatch()}, nil)

	reply, err := svc.HandleCommand(context.Background(), models.ParseCommand("/status B-1"), "x")
	require.NoError(t, err)
	assert.Contains(t, reply, "Birds: 980 of 1000 (mortality 2.00%)")
	assert.Contains(t, reply, "Health: Good (80)")
}

func TestHandleCommand_InvalidArguments(t *testing.T) {
	svc := NewService(&fakeAggregator{batch: sampleBatch()}, nil)

	for _, message := range []string{
		"/mortality B-1",
		"/mortality B-1 many",
		"/mortality B-1 -3",
		"/feed B-1 lots",
		"/feed B-1 10 heavy",
		"/feed B-1 NaN",
		"/feed B-1 Inf",
		"/feed B-1 1e300",
		"/feed B-1 10 NaN",
		"/mortality B-1 99999999999",
		"/vaccination B-1",
		"/health B-1 sick",
		"/status",
	} {
		_, err := svc.HandleCommand(context.Background(), models.ParseCommand(message), "x")
		assert.ErrorIs(t, err, ErrInvalidArguments, message)
	}
}

func TestHandleCommand_Unsupported(t *testing.T) {
	svc := NewService(&fakeAggregator{}, nil)
	_, err := svc.HandleCommand(context.Background(), models.ParseCommand("/eggs 300"), "x")
	assert.ErrorIs(t, err, ErrUnsupportedCommand)
}

func TestHandleCommand_PropagatesNotFound(t *testing.T) {
	svc := NewService(&fakeAggregator{err: models.ErrBatchNotFound}, nil)
	_, err := svc.HandleCommand(context.Background(), models.ParseCommand("/mortality B-9 2"), "x")
	assert.ErrorIs(t, err, models.ErrBatchNotFound)
}
