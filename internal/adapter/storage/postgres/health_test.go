package postgres

import (
	"context"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthCheck(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	hc := NewHealthCheck(mock)
	assert.Equal(t, "postgresql", hc.Name())

	mock.ExpectQuery("SELECT to_regclass").
		WillReturnRows(pgxmock.NewRows([]string{"present"}).AddRow(true))
	assert.NoError(t, hc.Ping(context.Background()))

	mock.ExpectQuery("SELECT to_regclass").
		WillReturnRows(pgxmock.NewRows([]string{"present"}).AddRow(false))
	assert.EqualError(t, hc.Ping(context.Background()), "ledger schema not migrated")
}
