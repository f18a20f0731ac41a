package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransition(t *testing.T) {
	tests := []struct {
		from    OrderState
		trigger OrderTrigger
		to      OrderState
		ok      bool
	}{
		{OrderInactive, TriggerActivate, OrderActive, true},
		{OrderActive, TriggerExecute, OrderExecuted, true},
		{OrderActive, TriggerCancel, OrderCancelled, true},
		{OrderExecuted, TriggerSettle, OrderInactive, true},
		{OrderCancelled, TriggerSettle, OrderInactive, true},

		{OrderInactive, TriggerExecute, OrderInactive, false},
		{OrderInactive, TriggerCancel, OrderInactive, false},
		{OrderActive, TriggerActivate, OrderActive, false},
		{OrderActive, TriggerSettle, OrderActive, false},
		{OrderExecuted, TriggerCancel, OrderExecuted, false},
		{OrderCancelled, TriggerExecute, OrderCancelled, false},
	}

	for _, tt := range tests {
		t.Run(tt.from.String(), func(t *testing.T) {
			got, err := Transition(tt.from, tt.trigger)
			if !tt.ok {
				require.Error(t, err)
				assert.Equal(t, tt.from, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.to, got)
		})
	}
}

func TestOrderState_MarshalText(t *testing.T) {
	b, err := OrderCancelled.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "CANCELLED", string(b))
	assert.Equal(t, "unknown", OrderState(42).String())
}
