package memory

import (
	"context"
	"sort"
	"time"

	"MessagingWebserver/internal/domain"
)

type MessagesStore struct {
	v view
}

func (s *MessagesStore) Insert(_ context.Context, senderID, receiverID, content string, status domain.MessageStatus, at time.Time) (domain.Message, error) {
	var out domain.Message
	err := s.v.write(func(d *data) error {
		d.seq++
		m := domain.Message{
			ID:         newID(),
			Seq:        d.seq,
			SenderID:   senderID,
			ReceiverID: receiverID,
			Content:    content,
			Timestamp:  at.UTC(),
			Status:     status,
			DeletedFor: []string{},
		}
		d.messages[m.ID] = m
		out = m
		return nil
	})
	return out, err
}

func (s *MessagesStore) Get(_ context.Context, id string) (domain.Message, error) {
	var out domain.Message
	err := s.v.read(func(d *data) error {
		m, ok := d.messages[id]
		if !ok {
			return domain.ErrNotFound
		}
		out = copyMessage(m)
		return nil
	})
	return out, err
}

func (s *MessagesStore) UpdateContent(_ context.Context, id, content string) (domain.Message, error) {
	var out domain.Message
	err := s.v.write(func(d *data) error {
		m, ok := d.messages[id]
		if !ok {
			return domain.ErrNotFound
		}
		m.Content = content
		m.IsEdited = true
		d.messages[id] = m
		out = copyMessage(m)
		return nil
	})
	return out, err
}

func (s *MessagesStore) Delete(_ context.Context, id string) error {
	return s.v.write(func(d *data) error {
		if _, ok := d.messages[id]; !ok {
			return domain.ErrNotFound
		}
		delete(d.messages, id)
		return nil
	})
}

func (s *MessagesStore) AddDeletedFor(_ context.Context, id, userID string) error {
	return s.v.write(func(d *data) error {
		m, ok := d.messages[id]
		if !ok {
			return domain.ErrNotFound
		}
		if m.DeletedForUser(userID) {
			return nil
		}
		m.DeletedFor = append(append([]string(nil), m.DeletedFor...), userID)
		d.messages[id] = m
		return nil
	})
}

func (s *MessagesStore) PromoteRequests(_ context.Context, senderID, receiverID string) (int64, error) {
	var n int64
	err := s.v.write(func(d *data) error {
		for id, m := range d.messages {
			if m.SenderID == senderID && m.ReceiverID == receiverID && m.Status == domain.MessageStatusRequest {
				m.Status = domain.MessageStatusNormal
				d.messages[id] = m
				n++
			}
		}
		return nil
	})
	return n, err
}

func (s *MessagesStore) ListBetween(_ context.Context, userA, userB string, filter domain.HistoryFilter) ([]domain.Message, error) {
	var out []domain.Message
	err := s.v.read(func(d *data) error {
		for _, m := range d.messages {
			if !between(m, userA, userB) {
				continue
			}
			if filter.OnlyNormal && m.Status != domain.MessageStatusNormal {
				continue
			}
			if filter.ExcludeDeletedFor != "" && m.DeletedForUser(filter.ExcludeDeletedFor) {
				continue
			}
			out = append(out, copyMessage(m))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out, nil
}

func (s *MessagesStore) ListIncomingRequests(_ context.Context, userID string) ([]domain.IncomingRequest, error) {
	var out []domain.IncomingRequest
	err := s.v.read(func(d *data) error {
		for _, m := range d.messages {
			if m.ReceiverID != userID || m.Status != domain.MessageStatusRequest {
				continue
			}
			sender, ok := d.users[m.SenderID]
			if !ok {
				continue
			}
			out = append(out, domain.IncomingRequest{Message: copyMessage(m), Sender: sender.Summary()})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[j].Before(out[i].Message) })
	return out, nil
}

func (s *MessagesStore) LastNormalBetween(_ context.Context, userA, userB string) (domain.Message, error) {
	var (
		out   domain.Message
		found bool
	)
	err := s.v.read(func(d *data) error {
		for _, m := range d.messages {
			if !between(m, userA, userB) || m.Status != domain.MessageStatusNormal {
				continue
			}
			if !found || out.Before(m) {
				out = m
				found = true
			}
		}
		return nil
	})
	if err != nil {
		return domain.Message{}, err
	}
	if !found {
		return domain.Message{}, domain.ErrNotFound
	}
	return copyMessage(out), nil
}

func between(m domain.Message, a, b string) bool {
	return (m.SenderID == a && m.ReceiverID == b) || (m.SenderID == b && m.ReceiverID == a)
}

func copyMessage(m domain.Message) domain.Message {
	m.DeletedFor = append([]string{}, m.DeletedFor...)
	return m
}
