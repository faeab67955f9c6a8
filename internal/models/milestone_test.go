package models

import (
	"testing"
)

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int           { return &v }

func TestIsValidMilestoneType(t *testing.T) {
	tests := []struct {
		name     string
		mtype    MilestoneType
		expected bool
	}{
		{"pickup", MilestonePickup, true},
		{"break", MilestoneBreak, true},
		{"fuel", MilestoneFuel, true},
		{"toll", MilestoneToll, true},
		{"drop", MilestoneDrop, true},
		{"unknown", "weigh-in", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := IsValidMilestoneType(tt.mtype)
			if result != tt.expected {
				t.Errorf("IsValidMilestoneType(%s) = %v, want %v", tt.mtype, result, tt.expected)
			}
		})
	}
}

func TestMilestoneMetadata_ValidateFor(t *testing.T) {
	tests := []struct {
		name    string
		mtype   MilestoneType
		meta    MilestoneMetadata
		wantErr bool
	}{
		{"fuel with cost and liters", MilestoneFuel, MilestoneMetadata{FuelCost: floatPtr(4200), Liters: floatPtr(48.5)}, false},
		{"fuel without cost", MilestoneFuel, MilestoneMetadata{Liters: floatPtr(48.5)}, true},
		{"fuel with zero cost", MilestoneFuel, MilestoneMetadata{FuelCost: floatPtr(0)}, true},
		{"fuel with negative liters", MilestoneFuel, MilestoneMetadata{FuelCost: floatPtr(4200), Liters: floatPtr(-1)}, true},
		{"toll with amount", MilestoneToll, MilestoneMetadata{TollAmount: floatPtr(350)}, false},
		{"toll without amount", MilestoneToll, MilestoneMetadata{}, true},
		{"break with duration", MilestoneBreak, MilestoneMetadata{DurationMins: intPtr(30)}, false},
		{"break without duration", MilestoneBreak, MilestoneMetadata{}, false},
		{"break with zero duration", MilestoneBreak, MilestoneMetadata{DurationMins: intPtr(0)}, true},
		{"pickup with notes only", MilestonePickup, MilestoneMetadata{Notes: "dock 4"}, false},
		{"drop empty", MilestoneDrop, MilestoneMetadata{}, false},
		{"unknown type", "weigh-in", MilestoneMetadata{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.meta.ValidateFor(tt.mtype)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateFor(%s) error = %v, wantErr %v", tt.mtype, err, tt.wantErr)
			}
		})
	}
}
