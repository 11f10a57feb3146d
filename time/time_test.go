// SPDX-License-Identifier: ice License 1.0

package time

import (
	"context"
	"testing"
	stdlibtime "time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

//nolint:funlen // It's better to keep it together.
func TestTime(t *testing.T) {
	t.Parallel()
	type tmpStruct struct {
		UpdatedAt *Time `json:"updatedAt"`
	}
	time1, err := stdlibtime.Parse(stdlibtime.RFC3339Nano, "2006-01-02T15:04:05.999999999Z")
	require.NoError(t, err)
	t1 := tmpStruct{UpdatedAt: New(time1)}
	binary, err := t1.UpdatedAt.MarshalBinary()
	require.NoError(t, err)
	assert.Equal(t, "2006-01-02T15:04:05.999999999Z", string(binary))
	text, err := t1.UpdatedAt.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "2006-01-02T15:04:05.999999999Z", string(text))
	t11 := tmpStruct{UpdatedAt: new(Time)}
	require.NoError(t, t11.UpdatedAt.UnmarshalBinary(binary))
	assert.EqualValues(t, tmpStruct{UpdatedAt: New(time1)}, t11)
	t12 := tmpStruct{UpdatedAt: new(Time)}
	require.NoError(t, t12.UpdatedAt.UnmarshalText(binary))
	assert.EqualValues(t, t11, t12)
	empty := tmpStruct{UpdatedAt: new(Time)}
	require.NoError(t, empty.UpdatedAt.UnmarshalBinary([]byte("")))
	emptyBinary, err := empty.UpdatedAt.MarshalBinary()
	require.NoError(t, err)
	assert.Empty(t, string(emptyBinary))
	bytes, err := json.MarshalContext(context.Background(), t1)
	require.NoError(t, err)
	assert.Equal(t, `{"updatedAt":"2006-01-02T15:04:05.999999999Z"}`, string(bytes))
	bytes, err = msgpack.Marshal(t1)
	require.NoError(t, err)
	var t2 tmpStruct
	require.NoError(t, msgpack.Unmarshal(bytes, &t2))
	assert.Equal(t, t1, t2)
	var t3 tmpStruct
	require.NoError(t, json.UnmarshalContext(context.Background(), []byte(`{"updatedAt":1}`), &t3))
	assert.Equal(t, tmpStruct{UpdatedAt: New(stdlibtime.Unix(0, 1).UTC())}, t3)
	var t4 tmpStruct
	require.NoError(t, json.UnmarshalContext(context.Background(), []byte(`{"updatedAt":1655303440552}`), &t4))
	assert.Equal(t, tmpStruct{UpdatedAt: New(stdlibtime.Unix(0, 1655303440552000000).UTC())}, t4)
	var t5 tmpStruct
	require.NoError(t, json.UnmarshalContext(context.Background(), []byte(`{"updatedAt":"2006-01-02T15:04:05.999999999Z"}`), &t5))
	assert.Equal(t, t1, t5)
	bytes, err = json.MarshalContext(context.Background(), &tmpStruct{UpdatedAt: New(stdlibtime.Unix(0, 0).UTC())})
	require.NoError(t, err)
	assert.Equal(t, `{"updatedAt":null}`, string(bytes))
	bytes, err = json.MarshalContext(context.Background(), tmpStruct{UpdatedAt: Now()})
	require.NoError(t, err)
	assert.Regexp(t, `{"updatedAt":".+"}`, string(bytes))
}
