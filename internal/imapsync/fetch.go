package imapsync

import (
	"fmt"
	"io"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
)

// SearchUnseen returns the UIDs of messages in the selected mailbox that are
// not yet flagged seen. Already-seen messages are never re-scanned; the remote
// seen flag is the authoritative cursor.
func SearchUnseen(c *client.Client) ([]uint32, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}

	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}

	uids, err := c.UidSearch(criteria)
	if err != nil {
		return nil, fmt.Errorf("failed to search for unseen messages: %w", err)
	}

	return uids, nil
}

// FetchRawMessage fetches the full raw payload for one UID using BODY.PEEK so
// the fetch itself never flips the remote seen flag; seen is set explicitly
// only after the local store write succeeds.
func FetchRawMessage(c *client.Client, uid uint32) (*imap.Message, []byte, error) {
	if c == nil {
		return nil, nil, fmt.Errorf("client is nil")
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uid)

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{
		imap.FetchEnvelope,
		imap.FetchInternalDate,
		imap.FetchUid,
		section.FetchItem(),
	}

	messages := make(chan *imap.Message, 1)
	done := make(chan error, 1)

	go func() {
		done <- c.UidFetch(seqSet, items, messages)
	}()

	msg := <-messages
	if err := <-done; err != nil {
		return nil, nil, fmt.Errorf("failed to fetch message: %w", err)
	}
	if msg == nil {
		return nil, nil, fmt.Errorf("server did not return message")
	}

	bodyReader := msg.GetBody(section)
	if bodyReader == nil {
		return msg, nil, nil
	}

	raw, err := io.ReadAll(bodyReader)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read message body: %w", err)
	}

	return msg, raw, nil
}

// MarkSeen flags one remote message as seen. This must only be called after
// the local ingest for that message has succeeded.
func MarkSeen(c *client.Client, uid uint32) error {
	if c == nil {
		return fmt.Errorf("client is nil")
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uid)

	item := imap.FormatFlagsOp(imap.AddFlags, true)
	flags := []interface{}{imap.SeenFlag}

	if err := c.UidStore(seqSet, item, flags, nil); err != nil {
		return fmt.Errorf("failed to mark message seen: %w", err)
	}

	return nil
}
