package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBucketAging(t *testing.T) {
	at := time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC)
	day := 24 * time.Hour
	open := []OpenInvoice{
		{IssuedAt: at.Add(-10 * day), Amount: 100},
		{IssuedAt: at.Add(-30 * day), Amount: 50},
		{IssuedAt: at.Add(-45 * day), Amount: 200},
		{IssuedAt: at.Add(-75 * day), Amount: 300},
		{IssuedAt: at.Add(-200 * day), Amount: 400},
		{IssuedAt: at.Add(-5 * day), Amount: 0},
	}

	b := BucketAging(open, at)
	assert.Equal(t, 150.0, b.Current)
	assert.Equal(t, 200.0, b.Days31To60)
	assert.Equal(t, 300.0, b.Days61To90)
	assert.Equal(t, 400.0, b.Over90)
	assert.Equal(t, 1050.0, b.Total())
}

func TestBucketAgingEmpty(t *testing.T) {
	b := BucketAging(nil, time.Now())
	assert.Zero(t, b.Total())
}
