package chat

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"github.com/ncecere/chatstore/backend/internal/config"
	"github.com/ncecere/chatstore/backend/internal/db"
	"github.com/ncecere/chatstore/backend/internal/services/costing"
	"github.com/ncecere/chatstore/backend/internal/services/usage"
)

type stubChatQueries struct {
	getSessionFn             func(ctx context.Context, id uuid.UUID) (db.ChatSession, error)
	insertMessageFn          func(ctx context.Context, arg db.InsertMessageParams) (db.ChatMessage, error)
	updateMessageFn          func(ctx context.Context, arg db.UpdateMessageParams) (db.ChatMessage, error)
	getMessageFn             func(ctx context.Context, id uuid.UUID) (db.ChatMessage, error)
	deleteMessageFn          func(ctx context.Context, id uuid.UUID) error
	recomputeRollupFn        func(ctx context.Context, arg db.RecomputeSessionRollupParams) (db.ChatSession, error)
	insertMessageCostFn      func(ctx context.Context, arg db.InsertMessageCostParams) (db.MessageCost, error)
	getMessageCostFn         func(ctx context.Context, messageID uuid.UUID) (db.MessageCost, error)
	upsertDailyUsageFn       func(ctx context.Context, arg db.UpsertDailyUsageParams) error
	incrementLifetimeFn      func(ctx context.Context, arg db.IncrementLifetimeUsageParams) error
	rollupCalls              int
	costInserts              int
	usageUpserts             int
}

func (s *stubChatQueries) CreateSession(ctx context.Context, arg db.CreateSessionParams) (db.ChatSession, error) {
	return db.ChatSession{ID: arg.ID, UserID: arg.UserID, Title: arg.Title, CreatedAt: time.Now()}, nil
}

func (s *stubChatQueries) GetSession(ctx context.Context, id uuid.UUID) (db.ChatSession, error) {
	if s.getSessionFn != nil {
		return s.getSessionFn(ctx, id)
	}
	return db.ChatSession{}, pgx.ErrNoRows
}

func (s *stubChatQueries) ListSessionsByUser(ctx context.Context, userID uuid.UUID) ([]db.ChatSession, error) {
	return nil, nil
}

func (s *stubChatQueries) DeleteSession(ctx context.Context, id uuid.UUID) error { return nil }

func (s *stubChatQueries) RecomputeSessionRollup(ctx context.Context, arg db.RecomputeSessionRollupParams) (db.ChatSession, error) {
	s.rollupCalls++
	if s.recomputeRollupFn != nil {
		return s.recomputeRollupFn(ctx, arg)
	}
	return db.ChatSession{ID: arg.SessionID}, nil
}

func (s *stubChatQueries) InsertMessage(ctx context.Context, arg db.InsertMessageParams) (db.ChatMessage, error) {
	if s.insertMessageFn != nil {
		return s.insertMessageFn(ctx, arg)
	}
	return db.ChatMessage{
		ID:           arg.ID,
		SessionID:    arg.SessionID,
		Role:         arg.Role,
		Content:      arg.Content,
		Model:        arg.Model,
		InputTokens:  arg.InputTokens,
		OutputTokens: arg.OutputTokens,
		ElapsedMs:    arg.ElapsedMs,
		ErrorMessage: arg.ErrorMessage,
		CreatedAt:    time.Now(),
	}, nil
}

func (s *stubChatQueries) UpdateMessage(ctx context.Context, arg db.UpdateMessageParams) (db.ChatMessage, error) {
	if s.updateMessageFn != nil {
		return s.updateMessageFn(ctx, arg)
	}
	return db.ChatMessage{}, pgx.ErrNoRows
}

func (s *stubChatQueries) GetMessage(ctx context.Context, id uuid.UUID) (db.ChatMessage, error) {
	if s.getMessageFn != nil {
		return s.getMessageFn(ctx, id)
	}
	return db.ChatMessage{}, pgx.ErrNoRows
}

func (s *stubChatQueries) DeleteMessage(ctx context.Context, id uuid.UUID) error {
	if s.deleteMessageFn != nil {
		return s.deleteMessageFn(ctx, id)
	}
	return nil
}

func (s *stubChatQueries) ListSessionMessages(ctx context.Context, sessionID uuid.UUID) ([]db.ChatMessage, error) {
	return nil, nil
}

func (s *stubChatQueries) InsertMessageCost(ctx context.Context, arg db.InsertMessageCostParams) (db.MessageCost, error) {
	s.costInserts++
	if s.insertMessageCostFn != nil {
		return s.insertMessageCostFn(ctx, arg)
	}
	return db.MessageCost{
		MessageID:       arg.MessageID,
		Model:           arg.Model,
		TotalCostMicros: arg.TotalCostMicros,
	}, nil
}

func (s *stubChatQueries) GetMessageCost(ctx context.Context, messageID uuid.UUID) (db.MessageCost, error) {
	if s.getMessageCostFn != nil {
		return s.getMessageCostFn(ctx, messageID)
	}
	return db.MessageCost{}, pgx.ErrNoRows
}

func (s *stubChatQueries) UpsertDailyUsage(ctx context.Context, arg db.UpsertDailyUsageParams) error {
	s.usageUpserts++
	if s.upsertDailyUsageFn != nil {
		return s.upsertDailyUsageFn(ctx, arg)
	}
	return nil
}

func (s *stubChatQueries) GetDailyUsage(ctx context.Context, arg db.GetDailyUsageParams) (db.DailyUsage, error) {
	return db.DailyUsage{}, pgx.ErrNoRows
}

func (s *stubChatQueries) ListDailyUsageRange(ctx context.Context, arg db.ListDailyUsageRangeParams) ([]db.DailyUsage, error) {
	return nil, nil
}

func (s *stubChatQueries) DeleteDailyUsageBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

func (s *stubChatQueries) IncrementLifetimeUsage(ctx context.Context, arg db.IncrementLifetimeUsageParams) error {
	if s.incrementLifetimeFn != nil {
		return s.incrementLifetimeFn(ctx, arg)
	}
	return nil
}

type fixedPricing struct {
	entry db.ModelCatalogEntry
}

func (f *fixedPricing) GetCatalogEntry(ctx context.Context, modelID string) (db.ModelCatalogEntry, error) {
	if f.entry.ModelID == "" {
		return db.ModelCatalogEntry{}, pgx.ErrNoRows
	}
	return f.entry, nil
}

func newTestChatService(pricing *fixedPricing) *Service {
	if pricing == nil {
		pricing = &fixedPricing{}
	}
	reader := costing.NewPricingReader(pricing, config.PricingConfig{})
	return &Service{
		costs:         costing.NewService(reader, nil),
		usage:         usage.NewService(nil, time.UTC, nil),
		previewLength: defaultPreviewLength,
		now:           time.Now,
	}
}

func sessionOwnedBy(userID uuid.UUID, sessionID uuid.UUID) func(context.Context, uuid.UUID) (db.ChatSession, error) {
	return func(ctx context.Context, id uuid.UUID) (db.ChatSession, error) {
		if id != sessionID {
			return db.ChatSession{}, pgx.ErrNoRows
		}
		return db.ChatSession{ID: sessionID, UserID: userID}, nil
	}
}

func TestWriteMessageRejectsInvalidRole(t *testing.T) {
	t.Parallel()

	svc := newTestChatService(nil)
	_, err := svc.writeMessageTx(context.Background(), &stubChatQueries{}, WriteMessageInput{
		SessionID: uuid.New(),
		Role:      "moderator",
		Content:   "hi",
	})
	require.ErrorIs(t, err, ErrInvalidRole)
}

func TestWriteMessageRequiresContentOrError(t *testing.T) {
	t.Parallel()

	svc := newTestChatService(nil)
	_, err := svc.writeMessageTx(context.Background(), &stubChatQueries{}, WriteMessageInput{
		SessionID: uuid.New(),
		Role:      RoleUser,
	})
	require.ErrorIs(t, err, ErrEmptyContent)

	// A failed assistant turn carries only an error message.
	userID := uuid.New()
	sessionID := uuid.New()
	stub := &stubChatQueries{getSessionFn: sessionOwnedBy(userID, sessionID)}
	_, err = svc.writeMessageTx(context.Background(), stub, WriteMessageInput{
		SessionID:    sessionID,
		Role:         RoleAssistant,
		ErrorMessage: "upstream timeout",
	})
	require.NoError(t, err)
}

func TestWriteMessageUnknownSession(t *testing.T) {
	t.Parallel()

	svc := newTestChatService(nil)
	_, err := svc.writeMessageTx(context.Background(), &stubChatQueries{}, WriteMessageInput{
		SessionID: uuid.New(),
		Role:      RoleUser,
		Content:   "hello",
	})
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func TestWriteMessageEnforcesOwnership(t *testing.T) {
	t.Parallel()

	svc := newTestChatService(nil)
	owner := uuid.New()
	sessionID := uuid.New()
	stub := &stubChatQueries{getSessionFn: sessionOwnedBy(owner, sessionID)}

	_, err := svc.writeMessageTx(context.Background(), stub, WriteMessageInput{
		SessionID: sessionID,
		UserID:    uuid.New(),
		Role:      RoleUser,
		Content:   "hello",
	})
	require.ErrorIs(t, err, ErrSessionOwnership)
}

func TestWriteUserMessageSkipsCosting(t *testing.T) {
	t.Parallel()

	svc := newTestChatService(nil)
	owner := uuid.New()
	sessionID := uuid.New()

	var usageCaptured db.UpsertDailyUsageParams
	stub := &stubChatQueries{
		getSessionFn: sessionOwnedBy(owner, sessionID),
		insertMessageCostFn: func(ctx context.Context, arg db.InsertMessageCostParams) (db.MessageCost, error) {
			t.Fatal("user messages must not be costed")
			return db.MessageCost{}, nil
		},
		upsertDailyUsageFn: func(ctx context.Context, arg db.UpsertDailyUsageParams) error {
			usageCaptured = arg
			return nil
		},
	}

	result, err := svc.writeMessageTx(context.Background(), stub, WriteMessageInput{
		SessionID:   sessionID,
		UserID:      owner,
		Role:        RoleUser,
		Content:     "what is the weather",
		InputTokens: 12,
	})
	require.NoError(t, err)
	require.Nil(t, result.Cost)
	require.Equal(t, 1, stub.rollupCalls)
	require.Equal(t, int64(1), usageCaptured.MessagesSent)
	require.Equal(t, int64(0), usageCaptured.MessagesReceived)
	require.Equal(t, int64(12), usageCaptured.InputTokens)
	require.Equal(t, owner, usageCaptured.UserID)
}

func TestWriteAssistantMessageRecordsCostAndUsage(t *testing.T) {
	t.Parallel()

	pricing := &fixedPricing{entry: db.ModelCatalogEntry{
		ModelID:         "acme/gpt-12",
		PromptPrice:     0.000002,
		CompletionPrice: 0.000004,
	}}
	svc := newTestChatService(pricing)
	owner := uuid.New()
	sessionID := uuid.New()

	var costCaptured db.InsertMessageCostParams
	var usageCaptured db.UpsertDailyUsageParams
	stub := &stubChatQueries{
		getSessionFn: sessionOwnedBy(owner, sessionID),
		insertMessageCostFn: func(ctx context.Context, arg db.InsertMessageCostParams) (db.MessageCost, error) {
			costCaptured = arg
			return db.MessageCost{MessageID: arg.MessageID, TotalCostMicros: arg.TotalCostMicros}, nil
		},
		upsertDailyUsageFn: func(ctx context.Context, arg db.UpsertDailyUsageParams) error {
			usageCaptured = arg
			return nil
		},
	}

	result, err := svc.writeMessageTx(context.Background(), stub, WriteMessageInput{
		SessionID:    sessionID,
		Role:         RoleAssistant,
		Content:      "sunny, 24 degrees",
		Model:        "acme/gpt-12",
		InputTokens:  1000,
		OutputTokens: 500,
	})
	require.NoError(t, err)
	require.NotNil(t, result.Cost)
	require.Equal(t, result.Message.ID, costCaptured.MessageID)
	require.Equal(t, int64(4_000), costCaptured.TotalCostMicros)
	require.Equal(t, 1, stub.rollupCalls)

	require.Equal(t, int64(1), usageCaptured.MessagesReceived)
	require.Equal(t, int64(0), usageCaptured.MessagesSent)
	require.Equal(t, int64(4_000), usageCaptured.CostUsdMicros)
	// Usage accrues to the session owner even for assistant turns.
	require.Equal(t, owner, usageCaptured.UserID)
}

func TestWriteMessageNormalizesRoleCase(t *testing.T) {
	t.Parallel()

	svc := newTestChatService(nil)
	owner := uuid.New()
	sessionID := uuid.New()
	stub := &stubChatQueries{getSessionFn: sessionOwnedBy(owner, sessionID)}

	result, err := svc.writeMessageTx(context.Background(), stub, WriteMessageInput{
		SessionID: sessionID,
		Role:      " User ",
		Content:   "hello",
	})
	require.NoError(t, err)
	require.Equal(t, RoleUser, result.Message.Role)
}

func TestStreamedAssistantMessageSettlesOnceAtFinish(t *testing.T) {
	t.Parallel()

	pricing := &fixedPricing{entry: db.ModelCatalogEntry{
		ModelID:         "acme/gpt-12",
		PromptPrice:     0.000002,
		CompletionPrice: 0.000004,
	}}
	svc := newTestChatService(pricing)
	owner := uuid.New()
	sessionID := uuid.New()

	var inserted db.ChatMessage
	var usageCaptured db.UpsertDailyUsageParams
	stub := &stubChatQueries{
		getSessionFn: sessionOwnedBy(owner, sessionID),
		insertMessageFn: func(ctx context.Context, arg db.InsertMessageParams) (db.ChatMessage, error) {
			inserted = db.ChatMessage{
				ID:          arg.ID,
				SessionID:   arg.SessionID,
				Role:        arg.Role,
				Model:       arg.Model,
				InputTokens: arg.InputTokens,
				CreatedAt:   time.Now(),
			}
			return inserted, nil
		},
		updateMessageFn: func(ctx context.Context, arg db.UpdateMessageParams) (db.ChatMessage, error) {
			updated := inserted
			updated.Content = arg.Content
			updated.OutputTokens = arg.OutputTokens
			return updated, nil
		},
		recomputeRollupFn: func(ctx context.Context, arg db.RecomputeSessionRollupParams) (db.ChatSession, error) {
			return db.ChatSession{ID: sessionID, UserID: owner}, nil
		},
		upsertDailyUsageFn: func(ctx context.Context, arg db.UpsertDailyUsageParams) error {
			usageCaptured = arg
			return nil
		},
	}

	// The streamed insert opens the row with no content yet and settles
	// nothing: no cost snapshot, no usage accrual.
	writeResult, err := svc.writeMessageTx(context.Background(), stub, WriteMessageInput{
		SessionID:   sessionID,
		UserID:      owner,
		Role:        RoleAssistant,
		Model:       "acme/gpt-12",
		InputTokens: 1000,
		Streaming:   true,
	})
	require.NoError(t, err)
	require.Nil(t, writeResult.Cost)
	require.Zero(t, stub.costInserts)
	require.Zero(t, stub.usageUpserts)

	finishResult, err := svc.finishMessageTx(context.Background(), stub, FinishMessageInput{
		MessageID:    writeResult.Message.ID,
		Content:      "final streamed text",
		OutputTokens: 500,
	})
	require.NoError(t, err)
	require.NotNil(t, finishResult.Cost)
	require.Equal(t, int64(4_000), finishResult.Cost.TotalCostMicros)

	// The whole insert-then-finish exchange bills and accrues exactly once.
	require.Equal(t, 1, stub.costInserts)
	require.Equal(t, 1, stub.usageUpserts)
	require.Equal(t, int64(1), usageCaptured.MessagesReceived)
	require.Equal(t, int64(1000), usageCaptured.InputTokens)
	require.Equal(t, int64(500), usageCaptured.OutputTokens)
	require.Equal(t, int64(4_000), usageCaptured.CostUsdMicros)
	require.Equal(t, owner, usageCaptured.UserID)
}

func TestFinishMessageLeavesSettledCostAlone(t *testing.T) {
	t.Parallel()

	svc := newTestChatService(nil)
	owner := uuid.New()
	sessionID := uuid.New()
	messageID := uuid.New()
	settled := db.MessageCost{MessageID: messageID, TotalCostMicros: 4_000}

	stub := &stubChatQueries{
		updateMessageFn: func(ctx context.Context, arg db.UpdateMessageParams) (db.ChatMessage, error) {
			return db.ChatMessage{
				ID:        messageID,
				SessionID: sessionID,
				Role:      RoleAssistant,
				Content:   arg.Content,
				CreatedAt: time.Now(),
			}, nil
		},
		recomputeRollupFn: func(ctx context.Context, arg db.RecomputeSessionRollupParams) (db.ChatSession, error) {
			return db.ChatSession{ID: sessionID, UserID: owner}, nil
		},
		getMessageCostFn: func(ctx context.Context, id uuid.UUID) (db.MessageCost, error) {
			return settled, nil
		},
	}

	result, err := svc.finishMessageTx(context.Background(), stub, FinishMessageInput{
		MessageID: messageID,
		Content:   "edited final text",
	})
	require.NoError(t, err)
	require.NotNil(t, result.Cost)
	require.Equal(t, settled, *result.Cost)
	require.Zero(t, stub.costInserts)
	require.Zero(t, stub.usageUpserts)
}

func TestFinishMessageUnknown(t *testing.T) {
	t.Parallel()

	svc := newTestChatService(nil)
	_, err := svc.finishMessageTx(context.Background(), &stubChatQueries{}, FinishMessageInput{
		MessageID: uuid.New(),
	})
	require.ErrorIs(t, err, ErrMessageNotFound)
}

func TestFinishMessageCostsAssistantFromStoredTokens(t *testing.T) {
	t.Parallel()

	pricing := &fixedPricing{entry: db.ModelCatalogEntry{
		ModelID:         "acme/gpt-12",
		PromptPrice:     0.000002,
		CompletionPrice: 0.000004,
	}}
	svc := newTestChatService(pricing)

	owner := uuid.New()
	sessionID := uuid.New()
	messageID := uuid.New()

	var costCaptured db.InsertMessageCostParams
	stub := &stubChatQueries{
		updateMessageFn: func(ctx context.Context, arg db.UpdateMessageParams) (db.ChatMessage, error) {
			require.Equal(t, messageID, arg.ID)
			return db.ChatMessage{
				ID:           messageID,
				SessionID:    sessionID,
				Role:         RoleAssistant,
				Content:      arg.Content,
				Model:        "acme/gpt-12",
				InputTokens:  1000,
				OutputTokens: arg.OutputTokens,
				CreatedAt:    time.Now(),
			}, nil
		},
		recomputeRollupFn: func(ctx context.Context, arg db.RecomputeSessionRollupParams) (db.ChatSession, error) {
			return db.ChatSession{ID: sessionID, UserID: owner}, nil
		},
		insertMessageCostFn: func(ctx context.Context, arg db.InsertMessageCostParams) (db.MessageCost, error) {
			costCaptured = arg
			return db.MessageCost{MessageID: arg.MessageID, TotalCostMicros: arg.TotalCostMicros}, nil
		},
	}

	result, err := svc.finishMessageTx(context.Background(), stub, FinishMessageInput{
		MessageID:    messageID,
		Content:      "final streamed text",
		OutputTokens: 500,
	})
	require.NoError(t, err)
	require.NotNil(t, result.Cost)
	require.Equal(t, int64(1000), costCaptured.InputTokens)
	require.Equal(t, int64(500), costCaptured.OutputTokens)
	require.Equal(t, int64(4_000), result.Cost.TotalCostMicros)
	require.Equal(t, 1, stub.rollupCalls)
}

func TestServiceNilGuards(t *testing.T) {
	t.Parallel()

	var svc *Service
	_, err := svc.WriteMessage(context.Background(), WriteMessageInput{})
	require.ErrorIs(t, err, ErrNotConfigured)

	_, err = svc.Session(context.Background(), uuid.New())
	require.ErrorIs(t, err, ErrNotConfigured)

	err = svc.DeleteSession(context.Background(), uuid.New(), uuid.New())
	require.ErrorIs(t, err, ErrNotConfigured)
}
