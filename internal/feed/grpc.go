package feed

import (
	"google.golang.org/grpc"

	"github.com/example/dispatchlite/internal/ride/domain"
)

// WatchRequest opens a ride update stream.
type WatchRequest struct{}

// RideUpdate is a streamed ride transition notification.
type RideUpdate struct {
	RideId   string
	Status   string
	DriverId string
	UnixTs   int64
}

// RideFeedServer defines the gRPC contract.
type RideFeedServer interface {
	Watch(*WatchRequest, RideFeed_WatchServer) error
}

// RegisterRideFeedServer registers the service implementation.
func RegisterRideFeedServer(s *grpc.Server, srv RideFeedServer) {
	s.RegisterService(&grpc.ServiceDesc{
		ServiceName: "dispatch.RideFeed",
		HandlerType: (*RideFeedServer)(nil),
		Streams: []grpc.StreamDesc{{
			StreamName:    "Watch",
			Handler:       _RideFeed_Watch_Handler,
			ServerStreams: true,
		}},
	}, srv)
}

// RideFeed_WatchServer defines the server stream interface.
type RideFeed_WatchServer interface {
	grpc.ServerStream
	Send(*RideUpdate) error
}

func _RideFeed_Watch_Handler(srv interface{}, stream grpc.ServerStream) error {
	req := new(WatchRequest)
	if err := stream.RecvMsg(req); err != nil {
		return err
	}
	return srv.(RideFeedServer).Watch(req, &rideFeedWatchServer{ServerStream: stream})
}

type rideFeedWatchServer struct {
	grpc.ServerStream
}

func (s *rideFeedWatchServer) Send(u *RideUpdate) error { return s.ServerStream.SendMsg(u) }

// Server streams hub events to gRPC subscribers.
type Server struct {
	hub *Hub
}

// NewServer constructs the stream server.
func NewServer(hub *Hub) *Server {
	return &Server{hub: hub}
}

// Watch forwards ride transitions until the client goes away.
func (s *Server) Watch(_ *WatchRequest, stream RideFeed_WatchServer) error {
	events, cancel := s.hub.Subscribe()
	defer cancel()
	for {
		select {
		case event, ok := <-events:
			if !ok {
				return nil
			}
			if err := stream.Send(toUpdate(event)); err != nil {
				return err
			}
		case <-stream.Context().Done():
			return nil
		}
	}
}

func toUpdate(event domain.RideEvent) *RideUpdate {
	update := &RideUpdate{
		RideId: event.RideID.String(),
		Status: string(event.Status),
		UnixTs: event.At.Unix(),
	}
	if event.DriverID != nil {
		update.DriverId = event.DriverID.String()
	}
	return update
}
