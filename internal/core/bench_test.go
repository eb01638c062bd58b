package core

import (
	"context"
	"fmt"
	"testing"
)

func benchmarkRoomBroadcast(b *testing.B, recipients int) {
	target := make(chan Message, 1)
	broker := NewBroker(
		WithBufferSize(1024),
		WithSinkFactory(func(_, user string) Sink {
			if user == "c0" {
				return SinkFunc(func(msg Message) error {
					target <- msg
					return nil
				})
			}
			return SinkFunc(func(Message) error { return nil })
		}),
	)
	defer broker.Close()

	if err := broker.CreateRoom("bench"); err != nil {
		b.Fatalf("create room: %v", err)
	}
	for i := range recipients {
		if err := broker.JoinRoom("bench", fmt.Sprintf("c%d", i)); err != nil {
			b.Fatalf("join: %v", err)
		}
	}

	msg := NewMessage("bench", "sender", "payload")

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if err := broker.SendMessage("bench", msg); err != nil {
			b.Fatalf("send: %v", err)
		}
		<-target
	}
}

func BenchmarkRoomBroadcast_10(b *testing.B)  { benchmarkRoomBroadcast(b, 10) }
func BenchmarkRoomBroadcast_100(b *testing.B) { benchmarkRoomBroadcast(b, 100) }
func BenchmarkRoomBroadcast_500(b *testing.B) { benchmarkRoomBroadcast(b, 500) }

func BenchmarkStreamPublish(b *testing.B) {
	s := NewStream(DefaultBufferSize)
	rx := s.Subscribe()
	ctx := context.Background()
	msg := Message{Text: "payload"}

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if _, err := s.Publish(msg); err != nil {
			b.Fatalf("publish: %v", err)
		}
		if _, err := rx.Recv(ctx); err != nil {
			b.Fatalf("recv: %v", err)
		}
	}
}
