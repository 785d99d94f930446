// LeafLoaf - Grocery Personalization Engine
// Copyright 2026 Adeetya (adeetya02)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adeetya02/LeafLoafLangGraph-sub004

package personalization

import (
	"testing"
	"time"
)

func weeklyStat(sku string, lastOrderedDay int) CycleStat {
	return CycleStat{
		Sku:              sku,
		MeanIntervalDays: 7,
		StdDevDays:       0,
		SampleCount:      3,
		LastOrdered:      testBase.AddDate(0, 0, lastOrderedDay),
	}
}

func TestPredictScenarioMilk(t *testing.T) {
	// Milk on days 0, 7, 14, 21; at day 28 the weekly cycle has exactly
	// elapsed: due_now, not overdue (multiplier 1.0 is strict).
	predictor := NewReorderPredictor(DefaultConfig().Reorder)
	now := testBase.AddDate(0, 0, 28)

	cycles := predictor.Predict(map[string]CycleStat{"milk": weeklyStat("milk", 21)}, now)

	if len(cycles) != 1 {
		t.Fatalf("got %d cycles, want 1", len(cycles))
	}
	c := cycles[0]
	if c.Urgency != UrgencyDueNow {
		t.Errorf("urgency = %q, want %q", c.Urgency, UrgencyDueNow)
	}
	wantDue := testBase.AddDate(0, 0, 28)
	if !c.PredictedDueDate.Equal(wantDue) {
		t.Errorf("due date = %v, want %v", c.PredictedDueDate, wantDue)
	}
	if c.Confidence != 1 {
		t.Errorf("confidence = %f, want 1 for zero variance", c.Confidence)
	}
}

func TestPredictUrgencyBands(t *testing.T) {
	predictor := NewReorderPredictor(DefaultConfig().Reorder)

	tests := []struct {
		name    string
		nowDay  int
		nowOff  time.Duration
		urgency Urgency
	}{
		{"well before due date", 1, 0, UrgencyUpcoming},
		{"inside buffer window", 5, 0, UrgencyDueSoon},
		{"exactly at due date", 7, 0, UrgencyDueNow},
		{"strictly past due date", 7, 12 * time.Hour, UrgencyOverdue},
		{"long past due date", 14, 0, UrgencyOverdue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			now := testBase.AddDate(0, 0, tt.nowDay).Add(tt.nowOff)
			cycles := predictor.Predict(map[string]CycleStat{"milk": weeklyStat("milk", 0)}, now)
			if len(cycles) != 1 {
				t.Fatalf("got %d cycles, want 1", len(cycles))
			}
			if cycles[0].Urgency != tt.urgency {
				t.Errorf("urgency = %q, want %q", cycles[0].Urgency, tt.urgency)
			}
		})
	}
}

func TestPredictSkipsDegenerateStats(t *testing.T) {
	predictor := NewReorderPredictor(DefaultConfig().Reorder)
	now := testBase.AddDate(0, 0, 10)

	stats := map[string]CycleStat{
		"irregular":  {Sku: "irregular", Irregular: true, LastOrdered: testBase},
		"nosamples":  {Sku: "nosamples", SampleCount: 0, LastOrdered: testBase},
		"zeromean":   {Sku: "zeromean", MeanIntervalDays: 0, SampleCount: 2, LastOrdered: testBase},
		"legitimate": weeklyStat("legitimate", 0),
	}

	cycles := predictor.Predict(stats, now)
	if len(cycles) != 1 || cycles[0].Sku != "legitimate" {
		t.Errorf("degenerate stats must be skipped without error, got %v", cycles)
	}
}

func TestPredictHighVarianceLowConfidence(t *testing.T) {
	predictor := NewReorderPredictor(DefaultConfig().Reorder)
	stat := CycleStat{
		Sku:              "erratic",
		MeanIntervalDays: 10,
		StdDevDays:       12,
		SampleCount:      5,
		LastOrdered:      testBase,
	}

	cycles := predictor.Predict(map[string]CycleStat{"erratic": stat}, testBase.AddDate(0, 0, 5))
	if len(cycles) != 1 {
		t.Fatal("high variance is not an error")
	}
	if cycles[0].Confidence != 0 {
		t.Errorf("confidence = %f, want clamped 0", cycles[0].Confidence)
	}
}

func TestPredictHolidayAdjustment(t *testing.T) {
	cfg := DefaultConfig().Reorder
	// Predicted due date lands two days before the holiday: inside the
	// three-day window, so it shifts three days earlier.
	cfg.Holidays = []time.Time{testBase.AddDate(0, 0, 9)}
	predictor := NewReorderPredictor(cfg)

	cycles := predictor.Predict(map[string]CycleStat{"milk": weeklyStat("milk", 0)}, testBase.AddDate(0, 0, 1))

	c := cycles[0]
	if !c.HolidayAdjusted {
		t.Fatal("expected holiday adjustment flag")
	}
	wantDue := testBase.AddDate(0, 0, 4) // day 7 pulled back by the window
	if !c.PredictedDueDate.Equal(wantDue) {
		t.Errorf("due date = %v, want %v", c.PredictedDueDate, wantDue)
	}
}

func TestPredictNoHolidayAdjustmentOutsideWindow(t *testing.T) {
	cfg := DefaultConfig().Reorder
	cfg.Holidays = []time.Time{testBase.AddDate(0, 0, 30)}
	predictor := NewReorderPredictor(cfg)

	cycles := predictor.Predict(map[string]CycleStat{"milk": weeklyStat("milk", 0)}, testBase)
	if cycles[0].HolidayAdjusted {
		t.Error("holiday far from the due date must not adjust it")
	}
}

func TestSuggestBundles(t *testing.T) {
	predictor := NewReorderPredictor(DefaultConfig().Reorder)
	day := func(n int) time.Time { return testBase.AddDate(0, 0, n) }

	cycles := []ReorderCycle{
		{Sku: "milk", PredictedDueDate: day(7)},
		{Sku: "eggs", PredictedDueDate: day(8)},
		{Sku: "bread", PredictedDueDate: day(9)},
		{Sku: "soap", PredictedDueDate: day(20)},
	}

	bundles := predictor.SuggestBundles(cycles)

	if len(bundles) != 1 {
		t.Fatalf("got %d bundles, want 1", len(bundles))
	}
	b := bundles[0]
	want := []string{"bread", "eggs", "milk"}
	if len(b.Skus) != len(want) {
		t.Fatalf("bundle skus = %v, want %v", b.Skus, want)
	}
	for i := range want {
		if b.Skus[i] != want[i] {
			t.Errorf("bundle skus = %v, want %v", b.Skus, want)
			break
		}
	}
	if !b.DueDate.Equal(day(7)) {
		t.Errorf("bundle due date = %v, want %v", b.DueDate, day(7))
	}
}

func TestSuggestBundlesNoSingletons(t *testing.T) {
	predictor := NewReorderPredictor(DefaultConfig().Reorder)
	day := func(n int) time.Time { return testBase.AddDate(0, 0, n) }

	cycles := []ReorderCycle{
		{Sku: "milk", PredictedDueDate: day(7)},
		{Sku: "soap", PredictedDueDate: day(20)},
	}

	if bundles := predictor.SuggestBundles(cycles); len(bundles) != 0 {
		t.Errorf("isolated due dates must not bundle, got %v", bundles)
	}
}

func TestBucket(t *testing.T) {
	cycles := []ReorderCycle{
		{Sku: "a", Urgency: UrgencyOverdue},
		{Sku: "b", Urgency: UrgencyDueNow},
		{Sku: "c", Urgency: UrgencyDueSoon},
		{Sku: "d", Urgency: UrgencyUpcoming},
		{Sku: "e", Urgency: UrgencyDueNow},
	}

	res := Bucket("u1", cycles, nil)

	if len(res.Overdue) != 1 || len(res.DueNow) != 2 || len(res.DueSoon) != 1 || len(res.Upcoming) != 1 {
		t.Errorf("bucket sizes = %d/%d/%d/%d, want 1/2/1/1",
			len(res.Overdue), len(res.DueNow), len(res.DueSoon), len(res.Upcoming))
	}
	if res.DueNow[0].Sku != "b" || res.DueNow[1].Sku != "e" {
		t.Error("bucketing must preserve input order within a band")
	}
}
