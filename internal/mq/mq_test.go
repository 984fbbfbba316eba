package mq

import (
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/Relay/internal/domain"
)

func TestMessageIDs_Deterministic(t *testing.T) {
	step := domain.EnqueueStep{TenantID: "t1", RunID: "r1", StepID: "s1"}
	if got, want := EnqueueStepID(step), "step/t1/r1/s1"; got != want {
		t.Errorf("EnqueueStepID() = %q, want %q", got, want)
	}

	ttl := time.Unix(1700000000, 0)
	wake := domain.TimerWake{
		Timer: domain.Timer{TenantID: "t1", ID: "daily", TTL: &ttl},
		Actor: domain.ActorSweeper,
	}
	if got, want := TimerWakeID(wake), "timer/t1/daily/1700000000/system:sweeper"; got != want {
		t.Errorf("TimerWakeID() = %q, want %q", got, want)
	}

	wake.Actor = domain.ActorUser
	if TimerWakeID(wake) == "timer/t1/daily/1700000000/system:sweeper" {
		t.Error("user deletion must not share an ID with the sweep wake")
	}

	legacy := domain.TimerWake{Timer: domain.Timer{TenantID: "t1", ID: "s"}, Actor: domain.ActorSweeper}
	if got, want := TimerWakeID(legacy), "timer/t1/s/0/system:sweeper"; got != want {
		t.Errorf("TimerWakeID(legacy) = %q, want %q", got, want)
	}

	fixed := domain.InvokeRun{TenantID: "t1", RunID: "run-1"}
	if InvokeRunID(fixed) != InvokeRunID(fixed) {
		t.Error("InvokeRunID must be stable for a fixed run id")
	}
	random := domain.InvokeRun{TenantID: "t1"}
	if InvokeRunID(random) == InvokeRunID(random) {
		t.Error("InvokeRunID must be unique without a run id")
	}
}

func TestQueueFor(t *testing.T) {
	tests := []struct {
		msgType MessageType
		want    Queue
	}{
		{MessageTypeInvokeRun, QueueRuns},
		{MessageTypeCancelRuns, QueueRuns},
		{MessageTypeEnqueueStep, QueueSteps},
		{MessageTypeTimerWake, QueueTimers},
		{MessageTypeResumeRef, QueueEvents},
	}

	for _, tt := range tests {
		got, ok := QueueFor(tt.msgType)
		if !ok || got != tt.want {
			t.Errorf("QueueFor(%s) = %q, %v; want %q", tt.msgType, got, ok, tt.want)
		}
	}

	if _, ok := QueueFor("unknown"); ok {
		t.Error("QueueFor(unknown) should not resolve")
	}
}

func TestToRecord(t *testing.T) {
	body := []byte(`{"id":"step/t1/r1/s1","type":"step.enqueue","payload":{"tenant_id":"t1","run_id":"r1","step_id":"s1"}}`)

	rec, err := toRecord(QueueSteps, amqp.Delivery{DeliveryTag: 7, Body: body})
	if err != nil {
		t.Fatalf("toRecord() error: %v", err)
	}
	if rec.ItemID != "7" {
		t.Errorf("ItemID = %q, want 7", rec.ItemID)
	}
	if rec.ConsumerID != string(QueueSteps) {
		t.Errorf("ConsumerID = %q", rec.ConsumerID)
	}
	if rec.SequenceNumber != "step/t1/r1/s1" {
		t.Errorf("SequenceNumber = %q", rec.SequenceNumber)
	}

	// AMQP MessageId имеет приоритет над ID конверта
	rec, err = toRecord(QueueSteps, amqp.Delivery{DeliveryTag: 8, MessageId: "amqp-id", Body: body})
	if err != nil {
		t.Fatalf("toRecord() error: %v", err)
	}
	if rec.SequenceNumber != "amqp-id" {
		t.Errorf("SequenceNumber = %q, want amqp-id", rec.SequenceNumber)
	}

	if _, err := toRecord(QueueSteps, amqp.Delivery{Body: []byte("not json")}); err == nil {
		t.Error("expected error for malformed body")
	}
	if _, err := toRecord(QueueSteps, amqp.Delivery{Body: []byte(`{"type":"step.enqueue"}`)}); err == nil {
		t.Error("expected error for message without id")
	}
}

func TestParsePayload(t *testing.T) {
	msg, err := Decode([]byte(`{"id":"x","type":"ref.resume","payload":{"tenant_id":"t1","ref":"confirm","payload":{"answer":"yes"}}}`))
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}

	resume, err := ParsePayload[domain.ResumeRef](msg)
	if err != nil {
		t.Fatalf("ParsePayload() error: %v", err)
	}
	if resume.Ref != "confirm" || resume.Payload["answer"] != "yes" {
		t.Errorf("unexpected payload: %+v", resume)
	}
}
