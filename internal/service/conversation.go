package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pet_chat/internal/domain"
	"pet_chat/internal/metrics"
	"pet_chat/internal/repository"
	apperrors "pet_chat/pkg/errors"
	"pet_chat/pkg/logger"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

type ConversationService interface {
	// ResolveOrCreate возвращает активную переписку requester с владельцем питомца, создавая ее при отсутствии
	ResolveOrCreate(ctx context.Context, petID, requesterID uuid.UUID) (*domain.Conversation, error)
	// Find - то же без создания: ErrConversationNotFound, если переписки нет
	Find(ctx context.Context, petID, requesterID uuid.UUID) (*domain.Conversation, error)
	CheckExists(ctx context.Context, petID, requesterID uuid.UUID) (*domain.ConversationLookup, error)
	// Authorize возвращает заголовок активной переписки, если userID ее участник
	Authorize(ctx context.Context, conversationID, userID uuid.UUID) (*domain.Conversation, error)
	GetByID(ctx context.Context, conversationID, userID uuid.UUID) (*domain.Conversation, error)
	GetMessages(ctx context.Context, conversationID, userID uuid.UUID) ([]*domain.Message, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]*domain.ConversationSummary, error)
	MarkRead(ctx context.Context, conversationID, userID uuid.UUID) (int64, error)
	RetireByPet(ctx context.Context, actorID *uuid.UUID, actorRole string, petIDs ...uuid.UUID) ([]uuid.UUID, error)
}

type conversationService struct {
	convRepo repository.ConversationRepository
	petRepo  repository.PetRepository
	userRepo repository.UserRepository
	audit    AuditService
	log      logger.Logger

	creates       singleflight.Group
	createTimeout time.Duration
}

// defaultCreateTimeout ограничивает общее создание переписки, не привязанное к вызывающему
const defaultCreateTimeout = 10 * time.Second

func NewConversationService(
	convRepo repository.ConversationRepository,
	petRepo repository.PetRepository,
	userRepo repository.UserRepository,
	audit AuditService,
	log logger.Logger,
) ConversationService {
	return &conversationService{
		convRepo:      convRepo,
		petRepo:       petRepo,
		userRepo:      userRepo,
		audit:         audit,
		log:           log,
		createTimeout: defaultCreateTimeout,
	}
}

// resolveParticipants проверяет питомца и его владельца
func (s *conversationService) resolveParticipants(ctx context.Context, petID, requesterID uuid.UUID) (*domain.Pet, *domain.User, error) {
	pet, err := s.petRepo.GetByID(ctx, petID)
	if err != nil {
		return nil, nil, apperrors.Classify(err)
	}
	if pet.OwnerID == nil {
		return nil, nil, apperrors.ErrOwnerNotFound
	}

	owner, err := s.userRepo.GetByID(ctx, *pet.OwnerID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, nil, apperrors.ErrOwnerNotFound
		}
		return nil, nil, apperrors.Classify(err)
	}

	if owner.ID == requesterID {
		return nil, nil, apperrors.ErrInvalidParticipants
	}
	return pet, owner, nil
}

func (s *conversationService) ResolveOrCreate(ctx context.Context, petID, requesterID uuid.UUID) (*domain.Conversation, error) {
	pet, owner, err := s.resolveParticipants(ctx, petID, requesterID)
	if err != nil {
		return nil, err
	}

	pair := domain.NormalizePair(requesterID, owner.ID)
	key := fmt.Sprintf("%s|%s|%s", pet.ID, pair[0], pair[1])

	// Создание общее для всех ожидающих, поэтому живет на собственном контексте:
	// отмена одного вызывающего не должна ронять остальных
	ch := s.creates.DoChan(key, func() (interface{}, error) {
		flightCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.createTimeout)
		defer cancel()
		return s.findOrCreate(flightCtx, pet.ID, requesterID, owner.ID)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, apperrors.Classify(res.Err)
		}
		return res.Val.(*domain.Conversation), nil
	case <-ctx.Done():
		return nil, apperrors.Classify(ctx.Err())
	}
}

func (s *conversationService) findOrCreate(ctx context.Context, petID, requesterID, ownerID uuid.UUID) (*domain.Conversation, error) {
	conv, err := s.convRepo.FindActive(ctx, petID, requesterID, ownerID)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}

	conv = domain.NewConversation(petID, requesterID, ownerID, repository.Now())
	if err := s.convRepo.Create(ctx, conv); err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			// Другой процесс успел создать переписку - возвращаем ее
			s.log.Debug("Conversation created concurrently, re-reading", "pet_id", petID)
			return s.convRepo.FindActive(ctx, petID, requesterID, ownerID)
		}
		return nil, err
	}

	metrics.ConversationsCreated.Inc()
	s.log.Info("Conversation created", "conversation_id", conv.ID, "pet_id", petID)
	_ = s.audit.ConversationCreated(ctx, conv, requesterID)
	return conv, nil
}

func (s *conversationService) Find(ctx context.Context, petID, requesterID uuid.UUID) (*domain.Conversation, error) {
	_, owner, err := s.resolveParticipants(ctx, petID, requesterID)
	if err != nil {
		return nil, err
	}

	conv, err := s.convRepo.FindActive(ctx, petID, requesterID, owner.ID)
	if err != nil {
		return nil, apperrors.Classify(err)
	}
	return conv, nil
}

func (s *conversationService) CheckExists(ctx context.Context, petID, requesterID uuid.UUID) (*domain.ConversationLookup, error) {
	pet, owner, err := s.resolveParticipants(ctx, petID, requesterID)
	if err != nil {
		return nil, err
	}

	lookup := &domain.ConversationLookup{
		Pet:   pet.Summary(),
		Owner: owner.Summary(),
	}

	conv, err := s.convRepo.FindActive(ctx, petID, requesterID, owner.ID)
	switch {
	case err == nil:
		lookup.Exists = true
		lookup.ConversationID = &conv.ID
	case errors.Is(err, apperrors.ErrNotFound):
	default:
		return nil, apperrors.Classify(err)
	}
	return lookup, nil
}

func (s *conversationService) Authorize(ctx context.Context, conversationID, userID uuid.UUID) (*domain.Conversation, error) {
	conv, err := s.convRepo.GetByID(ctx, conversationID)
	if err != nil {
		return nil, apperrors.Classify(err)
	}
	if !conv.IsActive {
		return nil, apperrors.ErrConversationNotFound
	}
	if !conv.HasParticipant(userID) {
		return nil, apperrors.ErrForbidden
	}
	return conv, nil
}

func (s *conversationService) GetByID(ctx context.Context, conversationID, userID uuid.UUID) (*domain.Conversation, error) {
	conv, err := s.Authorize(ctx, conversationID, userID)
	if err != nil {
		return nil, err
	}

	messages, err := s.convRepo.GetMessages(ctx, conversationID)
	if err != nil {
		return nil, apperrors.Classify(err)
	}
	conv.Messages = messages
	return conv, nil
}

func (s *conversationService) GetMessages(ctx context.Context, conversationID, userID uuid.UUID) ([]*domain.Message, error) {
	if _, err := s.Authorize(ctx, conversationID, userID); err != nil {
		return nil, err
	}

	messages, err := s.convRepo.GetMessages(ctx, conversationID)
	if err != nil {
		return nil, apperrors.Classify(err)
	}
	return messages, nil
}

func (s *conversationService) ListForUser(ctx context.Context, userID uuid.UUID) ([]*domain.ConversationSummary, error) {
	items, err := s.convRepo.ListForUser(ctx, userID)
	if err != nil {
		return nil, apperrors.Classify(err)
	}

	petIDs := make([]uuid.UUID, 0, len(items))
	userIDs := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		petIDs = append(petIDs, item.Conversation.PetID)
		userIDs = append(userIDs, item.Conversation.OtherParticipant(userID))
	}

	pets, err := s.petRepo.GetByIDs(ctx, petIDs)
	if err != nil {
		return nil, apperrors.Classify(err)
	}
	users, err := s.userRepo.GetByIDs(ctx, userIDs)
	if err != nil {
		return nil, apperrors.Classify(err)
	}

	summaries := make([]*domain.ConversationSummary, 0, len(items))
	for _, item := range items {
		conv := item.Conversation
		summary := &domain.ConversationSummary{
			ID:          conv.ID,
			LastMessage: conv.LastMessage,
			UnreadCount: item.UnreadCount,
			CreatedAt:   conv.CreatedAt,
		}
		// Питомец мог быть удален каталогом раньше, чем переписка деактивирована
		if pet, ok := pets[conv.PetID]; ok {
			petSummary := pet.Summary()
			summary.Pet = &petSummary
		}
		otherID := conv.OtherParticipant(userID)
		summary.OtherParticipant = domain.UserSummary{ID: otherID}
		if other, ok := users[otherID]; ok {
			summary.OtherParticipant = other.Summary()
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

func (s *conversationService) MarkRead(ctx context.Context, conversationID, userID uuid.UUID) (int64, error) {
	if _, err := s.Authorize(ctx, conversationID, userID); err != nil {
		return 0, err
	}

	updated, err := s.convRepo.MarkRead(ctx, conversationID, userID)
	if err != nil {
		return 0, apperrors.Classify(err)
	}
	return updated, nil
}

func (s *conversationService) RetireByPet(ctx context.Context, actorID *uuid.UUID, actorRole string, petIDs ...uuid.UUID) ([]uuid.UUID, error) {
	if len(petIDs) == 0 {
		return nil, fmt.Errorf("%w: pet ids required", apperrors.ErrBadRequest)
	}

	retired, err := s.convRepo.RetireByPet(ctx, petIDs...)
	if err != nil {
		return nil, apperrors.Classify(err)
	}

	metrics.ConversationsRetired.Add(float64(len(retired)))
	s.log.Info("Conversations retired", "pets", len(petIDs), "conversations", len(retired))

	_ = s.audit.ConversationsRetired(ctx, Actor{ID: actorID, Role: actorRole}, petIDs, retired)
	return retired, nil
}
