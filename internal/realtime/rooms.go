package realtime

import (
	"sync"

	"pet_chat/internal/metrics"
	"pet_chat/pkg/logger"
)

// Peer - живое соединение, которому можно отправить готовый кадр
type Peer interface {
	ID() string
	// Send ставит кадр в очередь отправки; false, если очередь переполнена или соединение закрыто
	Send(frame []byte) bool
	Close()
}

// Rooms - таблица комнат рассылки: room id -> connection id -> peer.
// Хранит и обратный индекс, чтобы при отключении убрать соединение из всех комнат.
type Rooms struct {
	mu     sync.RWMutex
	rooms  map[string]map[string]Peer
	byPeer map[string]map[string]struct{}
	log    logger.Logger
}

func NewRooms(log logger.Logger) *Rooms {
	return &Rooms{
		rooms:  make(map[string]map[string]Peer),
		byPeer: make(map[string]map[string]struct{}),
		log:    log,
	}
}

func (r *Rooms) Join(roomID string, peer Peer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.rooms[roomID]
	if !ok {
		members = make(map[string]Peer)
		r.rooms[roomID] = members
	}
	members[peer.ID()] = peer

	joined, ok := r.byPeer[peer.ID()]
	if !ok {
		joined = make(map[string]struct{})
		r.byPeer[peer.ID()] = joined
	}
	joined[roomID] = struct{}{}
}

func (r *Rooms) Leave(roomID, peerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaveLocked(roomID, peerID)
}

// LeaveAll убирает соединение из всех комнат
func (r *Rooms) LeaveAll(peerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for roomID := range r.byPeer[peerID] {
		r.leaveLocked(roomID, peerID)
	}
	delete(r.byPeer, peerID)
}

func (r *Rooms) leaveLocked(roomID, peerID string) {
	if members, ok := r.rooms[roomID]; ok {
		delete(members, peerID)
		if len(members) == 0 {
			delete(r.rooms, roomID)
		}
	}
	if joined, ok := r.byPeer[peerID]; ok {
		delete(joined, roomID)
		if len(joined) == 0 {
			delete(r.byPeer, peerID)
		}
	}
}

// Broadcast отправляет кадр всем участникам комнаты и возвращает число доставленных
func (r *Rooms) Broadcast(roomID string, frame []byte) int {
	return r.BroadcastExcept(roomID, "", frame)
}

// BroadcastExcept - Broadcast без соединения exceptID
func (r *Rooms) BroadcastExcept(roomID, exceptID string, frame []byte) int {
	r.mu.RLock()
	peers := make([]Peer, 0, len(r.rooms[roomID]))
	for id, peer := range r.rooms[roomID] {
		if id != exceptID {
			peers = append(peers, peer)
		}
	}
	r.mu.RUnlock()

	delivered := 0
	for _, peer := range peers {
		if peer.Send(frame) {
			delivered++
			continue
		}
		// Медленный клиент: отключаем, чтобы не задерживать остальных
		r.log.Warn("Dropping slow realtime peer", "connection_id", peer.ID(), "room_id", roomID)
		metrics.DroppedPeers.Inc()
		r.LeaveAll(peer.ID())
		peer.Close()
	}
	return delivered
}

// Size возвращает число соединений в комнате
func (r *Rooms) Size(roomID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[roomID])
}

func (r *Rooms) Contains(roomID, peerID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.rooms[roomID][peerID]
	return ok
}
