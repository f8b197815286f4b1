package core

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/tech-vaibhav/RAG-API/internal/index"
	"github.com/tech-vaibhav/RAG-API/internal/store"
)

// noDocumentsAnswer is returned for questions asked before any document has
// been ingested. It is a placeholder answer, not an error: the turn still
// completes and both messages are recorded.
const noDocumentsAnswer = "No documents loaded. Upload a document first."

// ChatService owns conversations and the question-answer turn flow:
// store user message, retrieve context, call the language model, store
// assistant message.
type ChatService struct {
	dbStore    *store.SQLiteStore
	retrieval  *RetrievalService
	llm        Completer
	retrievalK int
}

func NewChatService(db *store.SQLiteStore, retrieval *RetrievalService, llm Completer, retrievalK int) *ChatService {
	if retrievalK <= 0 {
		retrievalK = DefaultRetrievalK
	}
	return &ChatService{
		dbStore:    db,
		retrieval:  retrieval,
		llm:        llm,
		retrievalK: retrievalK,
	}
}

// authorizeConversation fetches a conversation and verifies the caller owns
// it. The owner comparison always uses the stored owner field against the
// authenticated user id, never a client-supplied value.
func (s *ChatService) authorizeConversation(conversationID, userID int64) (*store.Conversation, error) {
	conv, err := s.dbStore.GetConversationByID(conversationID)
	if err != nil {
		log.Printf("Error fetching conversation %d: %v", conversationID, err)
		return nil, fmt.Errorf("%w: conversation lookup failed", ErrUnavailable)
	}
	if conv == nil {
		return nil, fmt.Errorf("conversation %d: %w", conversationID, ErrNotFound)
	}
	if conv.UserID != userID {
		return nil, ErrUnauthorized
	}
	return conv, nil
}

func (s *ChatService) CreateConversation(userID int64) (*store.Conversation, error) {
	conv, err := s.dbStore.CreateConversation(userID)
	if err != nil {
		log.Printf("Error creating conversation for user %d: %v", userID, err)
		return nil, fmt.Errorf("%w: conversation create failed", ErrUnavailable)
	}
	return conv, nil
}

func (s *ChatService) ListConversations(userID int64) ([]store.Conversation, error) {
	convs, err := s.dbStore.GetConversationsByUserID(userID)
	if err != nil {
		log.Printf("Error listing conversations for user %d: %v", userID, err)
		return nil, fmt.Errorf("%w: conversation list failed", ErrUnavailable)
	}
	return convs, nil
}

func (s *ChatService) GetMessages(conversationID, userID int64) ([]store.Message, error) {
	if _, err := s.authorizeConversation(conversationID, userID); err != nil {
		return nil, err
	}

	messages, err := s.dbStore.GetMessagesByConversationID(conversationID)
	if err != nil {
		log.Printf("Error fetching messages for conversation %d: %v", conversationID, err)
		return nil, fmt.Errorf("%w: message fetch failed", ErrUnavailable)
	}
	return messages, nil
}

func (s *ChatService) RenameConversation(conversationID, userID int64, title string) error {
	if _, err := s.authorizeConversation(conversationID, userID); err != nil {
		return err
	}

	if err := s.dbStore.UpdateConversationTitle(conversationID, title); err != nil {
		log.Printf("Error renaming conversation %d: %v", conversationID, err)
		return fmt.Errorf("%w: conversation rename failed", ErrUnavailable)
	}
	return nil
}

// DeleteConversation removes a conversation and, by cascade, its messages.
func (s *ChatService) DeleteConversation(conversationID, userID int64) error {
	if _, err := s.authorizeConversation(conversationID, userID); err != nil {
		return err
	}

	if err := s.dbStore.DeleteConversation(conversationID); err != nil {
		log.Printf("Error deleting conversation %d: %v", conversationID, err)
		return fmt.Errorf("%w: conversation delete failed", ErrUnavailable)
	}
	return nil
}

// Ask runs one question-answer turn. Writes are sequential: the user
// message is stored before retrieval and the assistant message after the
// model answers, so history reads always see them in that order. If the
// turn fails after the user message was stored, the error is surfaced and
// no assistant message is written.
func (s *ChatService) Ask(ctx context.Context, conversationID, userID int64, question string) (string, error) {
	if _, err := s.authorizeConversation(conversationID, userID); err != nil {
		return "", err
	}

	userMsg := store.Message{
		ConversationID: conversationID,
		Sender:         store.SenderUser,
		Content:        question,
	}
	if err := s.dbStore.CreateMessage(&userMsg); err != nil {
		log.Printf("Error storing user message for conversation %d: %v", conversationID, err)
		return "", fmt.Errorf("%w: message store failed", ErrUnavailable)
	}

	answer, err := s.answer(ctx, question)
	if err != nil {
		return "", err
	}

	assistantMsg := store.Message{
		ConversationID: conversationID,
		Sender:         store.SenderAssistant,
		Content:        answer,
	}
	if err := s.dbStore.CreateMessage(&assistantMsg); err != nil {
		log.Printf("Error storing assistant message for conversation %d: %v", conversationID, err)
		return "", fmt.Errorf("%w: message store failed", ErrUnavailable)
	}

	return answer, nil
}

func (s *ChatService) answer(ctx context.Context, question string) (string, error) {
	passages, err := s.retrieval.Retrieve(ctx, question, s.retrievalK)
	if errors.Is(err, index.ErrIndexEmpty) {
		return noDocumentsAnswer, nil
	}
	if err != nil {
		return "", err
	}

	prompt := fmt.Sprintf("Context:\n%s\n\nQuestion: %s\nAnswer:", strings.Join(passages, "\n"), question)

	answer, err := s.llm.Complete(ctx, prompt)
	if err != nil {
		log.Printf("Error from language model: %v", err)
		return "", fmt.Errorf("%w: language model call failed", ErrUnavailable)
	}
	return answer, nil
}
