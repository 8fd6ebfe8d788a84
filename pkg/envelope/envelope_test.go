package envelope

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewReplyLinksToRequest(t *testing.T) {
	req := New("board.feed", "board")
	req.MemberID = "mem-1"
	req.MemberName = "Anna"

	reply, err := NewReply(req, map[string]string{"slug": "de-warren"})
	require.NoError(t, err)

	assert.Equal(t, "board.feed.result", reply.Action)
	assert.Equal(t, req.ID, reply.ReplyTo)
	assert.NotEqual(t, req.ID, reply.ID)
	assert.Equal(t, "mem-1", reply.MemberID)
	assert.Equal(t, "Anna", reply.MemberName)
}

func TestNewErrorCarriesCodeAndMessage(t *testing.T) {
	req := New("board.like", "board")
	e := NewError(req, 401, "Log in om te liken")

	assert.Equal(t, "board.like.error", e.Action)
	assert.Equal(t, req.ID, e.ReplyTo)
	require.NotNil(t, e.Error)
	assert.Equal(t, 401, e.Error.Code)
	assert.Equal(t, "Log in om te liken", e.Error.Message)
	assert.Nil(t, e.Data)
}

func TestParseDataRoundTrip(t *testing.T) {
	type likeReq struct {
		Kind string `json:"kind"`
		ID   string `json:"id"`
	}

	ev, err := NewEvent("board.like", "board", likeReq{Kind: "posts", ID: "p1"})
	require.NoError(t, err)

	raw, err := ev.Marshal()
	require.NoError(t, err)

	back, err := Unmarshal(raw)
	require.NoError(t, err)
	assert.Equal(t, ev.ID, back.ID)

	got, err := ParseData[likeReq](back)
	require.NoError(t, err)
	assert.Equal(t, likeReq{Kind: "posts", ID: "p1"}, got)
}
