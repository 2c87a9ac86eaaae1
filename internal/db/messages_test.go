package db

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tbarna/mailroom/internal/models"
	"github.com/tbarna/mailroom/internal/testutil"
)

func newTestMessage(userID, messageID string, folder models.Folder) *models.Message {
	return &models.Message{
		UserID:          userID,
		MessageIDHeader: messageID,
		Folder:          folder,
		FromAddress:     "sender@example.com",
		ToAddresses:     []string{"recipient@example.com"},
		Subject:         "Test Subject",
		BodyText:        "Test body.",
		ReceivedAt:      time.Now().UTC(),
	}
}

func TestInsertMessageIfAbsent(t *testing.T) {
	pool := testutil.NewTestDB(t)
	defer pool.Close()

	ctx := context.Background()

	userID, err := GetOrCreateUser(ctx, pool, "test@example.com")
	if err != nil {
		t.Fatalf("GetOrCreateUser failed: %v", err)
	}

	t.Run("inserts a new row", func(t *testing.T) {
		msg := newTestMessage(userID, "<new@example.com>", models.FolderInbox)

		inserted, err := InsertMessageIfAbsent(ctx, pool, msg)
		if err != nil {
			t.Fatalf("InsertMessageIfAbsent failed: %v", err)
		}

		assert.True(t, inserted)
		assert.NotEmpty(t, msg.ID)
		assert.False(t, msg.CreatedAt.IsZero())
	})

	t.Run("duplicate identity converges on the existing row", func(t *testing.T) {
		first := newTestMessage(userID, "<dup@example.com>", models.FolderInbox)
		inserted, err := InsertMessageIfAbsent(ctx, pool, first)
		if err != nil {
			t.Fatalf("First insert failed: %v", err)
		}
		assert.True(t, inserted)

		second := newTestMessage(userID, "<dup@example.com>", models.FolderInbox)
		second.Subject = "A different subject on redelivery"
		inserted, err = InsertMessageIfAbsent(ctx, pool, second)
		if err != nil {
			t.Fatalf("Second insert failed: %v", err)
		}

		assert.False(t, inserted)
		// The caller observes the winning row, not its own attempt.
		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, "Test Subject", second.Subject)
	})

	t.Run("same message id in another folder is a distinct copy", func(t *testing.T) {
		inbox := newTestMessage(userID, "<shared@example.com>", models.FolderInbox)
		if _, err := InsertMessageIfAbsent(ctx, pool, inbox); err != nil {
			t.Fatalf("INBOX insert failed: %v", err)
		}

		sent := newTestMessage(userID, "<shared@example.com>", models.FolderSent)
		inserted, err := InsertMessageIfAbsent(ctx, pool, sent)
		if err != nil {
			t.Fatalf("SENT insert failed: %v", err)
		}

		assert.True(t, inserted)
		assert.NotEqual(t, inbox.ID, sent.ID)
	})

	t.Run("same message id for another owner is a distinct copy", func(t *testing.T) {
		otherID, err := GetOrCreateUser(ctx, pool, "other@example.com")
		if err != nil {
			t.Fatalf("GetOrCreateUser failed: %v", err)
		}

		mine := newTestMessage(userID, "<fanout@example.com>", models.FolderInbox)
		if _, err := InsertMessageIfAbsent(ctx, pool, mine); err != nil {
			t.Fatalf("First owner insert failed: %v", err)
		}

		theirs := newTestMessage(otherID, "<fanout@example.com>", models.FolderInbox)
		inserted, err := InsertMessageIfAbsent(ctx, pool, theirs)
		if err != nil {
			t.Fatalf("Second owner insert failed: %v", err)
		}

		assert.True(t, inserted)
		assert.NotEqual(t, mine.ID, theirs.ID)
	})

	t.Run("concurrent inserts resolve to one row", func(t *testing.T) {
		const attempts = 8

		results := make([]*models.Message, attempts)
		insertedFlags := make([]bool, attempts)
		errs := make([]error, attempts)

		var wg sync.WaitGroup
		for i := 0; i < attempts; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				msg := newTestMessage(userID, "<race@example.com>", models.FolderInbox)
				insertedFlags[i], errs[i] = InsertMessageIfAbsent(ctx, pool, msg)
				results[i] = msg
			}(i)
		}
		wg.Wait()

		var winners int
		for i := 0; i < attempts; i++ {
			if errs[i] != nil {
				t.Fatalf("Insert %d failed: %v", i, errs[i])
			}
			if insertedFlags[i] {
				winners++
			}
			// Every attempt, winner or not, observes the same row.
			assert.Equal(t, results[0].ID, results[i].ID)
		}
		assert.Equal(t, 1, winners)

		rows, err := ListMessagesByFolder(ctx, pool, userID, models.FolderInbox, 0)
		if err != nil {
			t.Fatalf("ListMessagesByFolder failed: %v", err)
		}
		var stored int
		for _, row := range rows {
			if row.MessageIDHeader == "<race@example.com>" {
				stored++
			}
		}
		assert.Equal(t, 1, stored)
	})

	t.Run("spam flag follows the folder", func(t *testing.T) {
		msg := newTestMessage(userID, "<spammy@example.com>", models.FolderSpam)
		if _, err := InsertMessageIfAbsent(ctx, pool, msg); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}

		stored, err := GetMessage(ctx, pool, msg.ID)
		if err != nil {
			t.Fatalf("GetMessage failed: %v", err)
		}

		assert.True(t, stored.IsSpam)
	})
}

func TestUpdateMessageFlags(t *testing.T) {
	pool := testutil.NewTestDB(t)
	defer pool.Close()

	ctx := context.Background()

	userID, err := GetOrCreateUser(ctx, pool, "flags@example.com")
	if err != nil {
		t.Fatalf("GetOrCreateUser failed: %v", err)
	}

	msg := newTestMessage(userID, "<flags@example.com>", models.FolderInbox)
	if _, err := InsertMessageIfAbsent(ctx, pool, msg); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	t.Run("patches only the given flag", func(t *testing.T) {
		read := true
		if err := UpdateMessageFlags(ctx, pool, msg.ID, FlagPatch{IsRead: &read}); err != nil {
			t.Fatalf("UpdateMessageFlags failed: %v", err)
		}

		stored, err := GetMessage(ctx, pool, msg.ID)
		if err != nil {
			t.Fatalf("GetMessage failed: %v", err)
		}

		assert.True(t, stored.IsRead)
		assert.False(t, stored.IsStarred)
	})

	t.Run("starring leaves read untouched", func(t *testing.T) {
		starred := true
		if err := UpdateMessageFlags(ctx, pool, msg.ID, FlagPatch{IsStarred: &starred}); err != nil {
			t.Fatalf("UpdateMessageFlags failed: %v", err)
		}

		stored, err := GetMessage(ctx, pool, msg.ID)
		if err != nil {
			t.Fatalf("GetMessage failed: %v", err)
		}

		assert.True(t, stored.IsRead)
		assert.True(t, stored.IsStarred)
	})

	t.Run("missing message returns not found", func(t *testing.T) {
		read := true
		err := UpdateMessageFlags(ctx, pool, "00000000-0000-0000-0000-000000000000", FlagPatch{IsRead: &read})
		assert.True(t, errors.Is(err, ErrMessageNotFound))
	})
}

func TestUpdateMessageFolder(t *testing.T) {
	pool := testutil.NewTestDB(t)
	defer pool.Close()

	ctx := context.Background()

	userID, err := GetOrCreateUser(ctx, pool, "folders@example.com")
	if err != nil {
		t.Fatalf("GetOrCreateUser failed: %v", err)
	}

	msg := newTestMessage(userID, "<move-me@example.com>", models.FolderInbox)
	if _, err := InsertMessageIfAbsent(ctx, pool, msg); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	t.Run("moving to spam sets the spam flag", func(t *testing.T) {
		if err := UpdateMessageFolder(ctx, pool, msg.ID, models.FolderSpam); err != nil {
			t.Fatalf("UpdateMessageFolder failed: %v", err)
		}

		stored, err := GetMessage(ctx, pool, msg.ID)
		if err != nil {
			t.Fatalf("GetMessage failed: %v", err)
		}

		assert.Equal(t, models.FolderSpam, stored.Folder)
		assert.True(t, stored.IsSpam)
	})

	t.Run("moving out of spam clears the spam flag", func(t *testing.T) {
		if err := UpdateMessageFolder(ctx, pool, msg.ID, models.FolderInbox); err != nil {
			t.Fatalf("UpdateMessageFolder failed: %v", err)
		}

		stored, err := GetMessage(ctx, pool, msg.ID)
		if err != nil {
			t.Fatalf("GetMessage failed: %v", err)
		}

		assert.Equal(t, models.FolderInbox, stored.Folder)
		assert.False(t, stored.IsSpam)
	})
}

func TestListAndSearchMessages(t *testing.T) {
	pool := testutil.NewTestDB(t)
	defer pool.Close()

	ctx := context.Background()

	userID, err := GetOrCreateUser(ctx, pool, "list@example.com")
	if err != nil {
		t.Fatalf("GetOrCreateUser failed: %v", err)
	}

	seed := []*models.Message{
		newTestMessage(userID, "<a@example.com>", models.FolderInbox),
		newTestMessage(userID, "<b@example.com>", models.FolderInbox),
		newTestMessage(userID, "<c@example.com>", models.FolderSent),
	}
	seed[0].Subject = "Quarterly budget review"
	seed[1].Subject = "Weekend hike"
	seed[1].BodyText = "Bring 100% waterproof boots"
	seed[1].IsStarred = true
	seed[2].Subject = "Re: Quarterly budget review"

	for _, m := range seed {
		if _, err := InsertMessageIfAbsent(ctx, pool, m); err != nil {
			t.Fatalf("Seed insert failed: %v", err)
		}
	}

	t.Run("lists only the requested folder", func(t *testing.T) {
		messages, err := ListMessagesByFolder(ctx, pool, userID, models.FolderInbox, 0)
		if err != nil {
			t.Fatalf("ListMessagesByFolder failed: %v", err)
		}

		assert.Len(t, messages, 2)
		for _, m := range messages {
			assert.Equal(t, models.FolderInbox, m.Folder)
		}
	})

	t.Run("limit caps the result set", func(t *testing.T) {
		messages, err := ListMessagesByFolder(ctx, pool, userID, models.FolderInbox, 1)
		if err != nil {
			t.Fatalf("ListMessagesByFolder failed: %v", err)
		}

		assert.Len(t, messages, 1)
	})

	t.Run("starred view crosses folders", func(t *testing.T) {
		messages, err := ListStarredMessages(ctx, pool, userID, 0)
		if err != nil {
			t.Fatalf("ListStarredMessages failed: %v", err)
		}

		assert.Len(t, messages, 1)
		assert.Equal(t, "Weekend hike", messages[0].Subject)
	})

	t.Run("search matches subject case-insensitively", func(t *testing.T) {
		messages, err := SearchMessages(ctx, pool, userID, "quarterly BUDGET", 0)
		if err != nil {
			t.Fatalf("SearchMessages failed: %v", err)
		}

		assert.Len(t, messages, 2)
	})

	t.Run("search matches body text", func(t *testing.T) {
		messages, err := SearchMessages(ctx, pool, userID, "waterproof", 0)
		if err != nil {
			t.Fatalf("SearchMessages failed: %v", err)
		}

		assert.Len(t, messages, 1)
	})

	t.Run("like metacharacters match literally", func(t *testing.T) {
		messages, err := SearchMessages(ctx, pool, userID, "100%", 0)
		if err != nil {
			t.Fatalf("SearchMessages failed: %v", err)
		}

		assert.Len(t, messages, 1)
		assert.Equal(t, "Weekend hike", messages[0].Subject)

		// A bare "%" must not act as a wildcard matching everything.
		messages, err = SearchMessages(ctx, pool, userID, "%zzz%", 0)
		if err != nil {
			t.Fatalf("SearchMessages failed: %v", err)
		}
		assert.Empty(t, messages)
	})

	t.Run("other users see nothing", func(t *testing.T) {
		otherID, err := GetOrCreateUser(ctx, pool, "nosy@example.com")
		if err != nil {
			t.Fatalf("GetOrCreateUser failed: %v", err)
		}

		messages, err := ListMessagesByFolder(ctx, pool, otherID, models.FolderInbox, 0)
		if err != nil {
			t.Fatalf("ListMessagesByFolder failed: %v", err)
		}

		assert.Empty(t, messages)
	})
}

func TestGetUnreadCounts(t *testing.T) {
	pool := testutil.NewTestDB(t)
	defer pool.Close()

	ctx := context.Background()

	userID, err := GetOrCreateUser(ctx, pool, "counts@example.com")
	if err != nil {
		t.Fatalf("GetOrCreateUser failed: %v", err)
	}

	unreadInbox := newTestMessage(userID, "<u1@example.com>", models.FolderInbox)
	readInbox := newTestMessage(userID, "<u2@example.com>", models.FolderInbox)
	readInbox.IsRead = true
	unreadStarredSent := newTestMessage(userID, "<u3@example.com>", models.FolderSent)
	unreadStarredSent.IsStarred = true
	unreadSpam := newTestMessage(userID, "<u4@example.com>", models.FolderSpam)

	for _, m := range []*models.Message{unreadInbox, readInbox, unreadStarredSent, unreadSpam} {
		if _, err := InsertMessageIfAbsent(ctx, pool, m); err != nil {
			t.Fatalf("Seed insert failed: %v", err)
		}
	}

	counts, err := GetUnreadCounts(ctx, pool, userID)
	if err != nil {
		t.Fatalf("GetUnreadCounts failed: %v", err)
	}

	assert.Equal(t, 1, counts.Inbox)
	assert.Equal(t, 1, counts.Sent)
	assert.Equal(t, 1, counts.Important)
	assert.Equal(t, 1, counts.Spam)
	assert.Equal(t, 0, counts.Trash)
}

func TestDeleteMessagePermanent(t *testing.T) {
	pool := testutil.NewTestDB(t)
	defer pool.Close()

	ctx := context.Background()

	userID, err := GetOrCreateUser(ctx, pool, "delete@example.com")
	if err != nil {
		t.Fatalf("GetOrCreateUser failed: %v", err)
	}

	msg := newTestMessage(userID, "<gone@example.com>", models.FolderTrash)
	if _, err := InsertMessageIfAbsent(ctx, pool, msg); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	if err := DeleteMessagePermanent(ctx, pool, msg.ID); err != nil {
		t.Fatalf("DeleteMessagePermanent failed: %v", err)
	}

	_, err = GetMessage(ctx, pool, msg.ID)
	assert.True(t, errors.Is(err, ErrMessageNotFound))

	err = DeleteMessagePermanent(ctx, pool, msg.ID)
	assert.True(t, errors.Is(err, ErrMessageNotFound))
}
