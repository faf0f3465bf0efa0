package domain_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/notifyhub/rss-broadcaster/internal/domain"
)

func TestSubscriberFilter_Match(t *testing.T) {
	joined := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	base := domain.Subscriber{
		SubscriberID: "s1",
		Confirmed:    true,
		Tags:         []string{"newsletter"},
		Joined:       joined,
	}
	before := joined.Add(-time.Hour)

	tests := []struct {
		name   string
		mutate func(*domain.Subscriber)
		filter domain.SubscriberFilter
		want   bool
	}{
		{"eligible with zero filter", nil, domain.SubscriberFilter{}, true},
		{"unconfirmed never matches", func(s *domain.Subscriber) { s.Confirmed = false }, domain.SubscriberFilter{}, false},
		{"unsubscribed never matches", func(s *domain.Subscriber) { s.Unsubscribed = true }, domain.SubscriberFilter{}, false},
		{"tag present", nil, domain.SubscriberFilter{TagName: "newsletter"}, true},
		{"tag absent", nil, domain.SubscriberFilter{TagName: "promo"}, false},
		{"joined after cutoff", nil, domain.SubscriberFilter{NewerThan: &before}, true},
		{"joined exactly at cutoff", nil, domain.SubscriberFilter{NewerThan: &joined}, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := base
			if tc.mutate != nil {
				tc.mutate(&s)
			}
			if got := tc.filter.Match(s); got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestTimeOfDay_Validate(t *testing.T) {
	t.Run("bounds accepted", func(t *testing.T) {
		for _, tod := range []domain.TimeOfDay{{0, 0}, {23, 59}, {9, 30}} {
			if err := tod.Validate(); err != nil {
				t.Fatalf("%+v: expected no error, got %v", tod, err)
			}
		}
	})

	t.Run("out of range rejected", func(t *testing.T) {
		for _, tod := range []domain.TimeOfDay{{24, 0}, {-1, 0}, {12, 60}} {
			if err := tod.Validate(); err != domain.ErrInvalidTimeOfDay {
				t.Fatalf("%+v: expected ErrInvalidTimeOfDay, got %v", tod, err)
			}
		}
	})
}

func TestTargetDate_Validate(t *testing.T) {
	if err := (domain.TargetDate{Day: 15, Month: 3, Year: 2024}).Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if err := (domain.TargetDate{Day: 15, Month: 13, Year: 2024}).Validate(); err != domain.ErrInvalidTargetDate {
		t.Fatalf("expected ErrInvalidTargetDate, got %v", err)
	}
}

func TestIsRetryable(t *testing.T) {
	cause := errors.New("throughput exceeded")

	if !domain.IsRetryable(fmt.Errorf("write: %w", &domain.WriteError{Retryable: true, Err: cause})) {
		t.Fatal("expected wrapped retryable error to be retryable")
	}
	if domain.IsRetryable(&domain.WriteError{Err: cause}) {
		t.Fatal("expected non-retryable WriteError")
	}
	if domain.IsRetryable(cause) {
		t.Fatal("expected plain error to be non-retryable")
	}
}
