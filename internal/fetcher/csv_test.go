package fetcher

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadTable(t *testing.T) {
	in := "id, address ,price\n1,10 High Street,250000\n2,\"Flat 3, Rose Court\",310000\n"
	rows, err := ReadTable(context.Background(), strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "1", rows[0]["id"])
	assert.Equal(t, "10 High Street", rows[0]["address"])
	assert.Equal(t, "Flat 3, Rose Court", rows[1]["address"])
	assert.Equal(t, "310000", rows[1]["price"])
}

func TestReadTable_ShortRowPadded(t *testing.T) {
	in := "id,address,price\n1,10 High Street\n"
	rows, err := ReadTable(context.Background(), strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "", rows[0]["price"])
}

func TestReadTable_Empty(t *testing.T) {
	rows, err := ReadTable(context.Background(), strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestParseFTPURL(t *testing.T) {
	host, path, err := parseFTPURL("ftp://feeds.example.com/listings/daily.csv")
	require.NoError(t, err)
	assert.Equal(t, "feeds.example.com:21", host)
	assert.Equal(t, "/listings/daily.csv", path)

	_, _, err = parseFTPURL("https://feeds.example.com/daily.csv")
	assert.Error(t, err)

	_, _, err = parseFTPURL("ftp://feeds.example.com")
	assert.Error(t, err)
}
