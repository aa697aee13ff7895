package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"pricewatch_backend/scheduler"
)

func TestShutdownSeesSchedulerStartedAfterLaunch(t *testing.T) {
	setActiveScheduler(nil)
	assert.Nil(t, activeScheduler())

	// The scheduler is created on a background goroutine well after main
	// reaches the shutdown wait; the guarded accessor must return it anyway.
	done := make(chan struct{})
	go func() {
		setActiveScheduler(scheduler.NewScheduler(nil, time.Minute))
		close(done)
	}()
	<-done

	assert.NotNil(t, activeScheduler())
}
