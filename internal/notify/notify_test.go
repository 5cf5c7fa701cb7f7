package notify

import (
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCenter_PushAndDrain(t *testing.T) {
	c := NewCenter(0, zerolog.Nop())

	first := c.Push(Toast{Message: "Tomatoes is out of stock", ProductIDs: []string{"p1"}})
	c.Push(Toast{Level: LevelError, Message: "Order failed"})

	assert.NotEmpty(t, first.ID)
	assert.False(t, first.CreatedAt.IsZero())
	assert.Equal(t, LevelInfo, first.Level)
	assert.Equal(t, 2, c.Pending())

	toasts := c.Drain()
	require.Len(t, toasts, 2)
	assert.Equal(t, "Tomatoes is out of stock", toasts[0].Message)
	assert.Equal(t, LevelError, toasts[1].Level)

	assert.Empty(t, c.Drain())
	assert.NotNil(t, c.Drain())
}

func TestCenter_DropsOldestWhenFull(t *testing.T) {
	c := NewCenter(3, zerolog.Nop())

	for i := 1; i <= 5; i++ {
		c.Push(Toast{Message: fmt.Sprintf("toast %d", i)})
	}

	toasts := c.Drain()
	require.Len(t, toasts, 3)
	assert.Equal(t, "toast 3", toasts[0].Message)
	assert.Equal(t, "toast 5", toasts[2].Message)
}
