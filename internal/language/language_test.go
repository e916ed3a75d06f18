package language

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOperationTypeAnonymous(t *testing.T) {
	doc, err := ParseQuery(`{ hello }`)
	require.NoError(t, err)

	op, ok := OperationType(doc, "")
	require.True(t, ok)
	require.Equal(t, Query, op)
}

func TestOperationTypeNamed(t *testing.T) {
	doc, err := ParseQuery(`
		query Fetch { hello }
		mutation Change { setHello }
	`)
	require.NoError(t, err)

	op, ok := OperationType(doc, "Change")
	require.True(t, ok)
	require.Equal(t, Mutation, op)

	_, ok = OperationType(doc, "Missing")
	require.False(t, ok)

	// Ambiguous without a name.
	_, ok = OperationType(doc, "")
	require.False(t, ok)
}

func TestOperationTypeSubscription(t *testing.T) {
	doc, err := ParseQuery(`subscription { ticks }`)
	require.NoError(t, err)

	op, ok := OperationType(doc, "")
	require.True(t, ok)
	require.Equal(t, Subscription, op)
}

func TestParseQueryError(t *testing.T) {
	_, err := ParseQuery(`{ hello `)
	require.Error(t, err)
}
