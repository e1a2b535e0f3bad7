package config

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSingletonInstance(t *testing.T) {
	ResetInstance()
	defer ResetInstance()

	instance1 := GetInstance()
	instance2 := GetInstance()
	assert.NotNil(t, instance1)
	assert.Same(t, instance1, instance2)

	var wg sync.WaitGroup
	instances := make([]ConfigManager, 100)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(index int) {
			defer wg.Done()
			instances[index] = GetInstance()
		}(i)
	}
	wg.Wait()

	for i, instance := range instances {
		assert.Same(t, instance1, instance, "instance %d differs", i)
	}
}

func TestSetInstanceForTesting(t *testing.T) {
	ResetInstance()
	defer ResetInstance()

	mock := NewConfigManager()
	SetInstanceForTesting(mock)
	assert.Same(t, mock, GetInstance())

	ResetInstance()
	fresh := GetInstance()
	assert.NotNil(t, fresh)
	assert.NotSame(t, mock, fresh)
}
