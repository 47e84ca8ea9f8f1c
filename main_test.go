package main

import (
	"testing"

	gormlogger "gorm.io/gorm/logger"
)

func TestGormLogLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected gormlogger.LogLevel
	}{
		{"info", gormlogger.Info},
		{"warn", gormlogger.Warn},
		{"error", gormlogger.Error},
		{"silent", gormlogger.Silent},
		{"", gormlogger.Silent},
		{"garbage", gormlogger.Silent},
	}

	for _, tt := range tests {
		if got := gormLogLevel(tt.level); got != tt.expected {
			t.Errorf("gormLogLevel(%q) = %v, expected %v", tt.level, got, tt.expected)
		}
	}
}
