package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecision_Remaining(t *testing.T) {
	assert.Equal(t, 7, Decision{Count: 3, Limit: 10}.Remaining())
	assert.Equal(t, 0, Decision{Count: 10, Limit: 10}.Remaining())
	assert.Equal(t, 0, Decision{Count: 14, Limit: 10}.Remaining())
}

func TestOutcome_String(t *testing.T) {
	assert.Equal(t, "admit", Admit.String())
	assert.Equal(t, "reject", Reject.String())
	assert.True(t, Decision{Outcome: Admit}.Allowed())
	assert.False(t, Decision{Outcome: Reject}.Allowed())
}
