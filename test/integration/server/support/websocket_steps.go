package support

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MeKo-Tech/cutout/internal/server"
	"github.com/MeKo-Tech/cutout/internal/testutil"
	"github.com/cucumber/godog"
	"github.com/gorilla/websocket"
)

const wsReadTimeout = 10 * time.Second

// RegisterWebSocketSteps registers the /ws/rem-bg steps.
func (tc *TestContext) RegisterWebSocketSteps(sc *godog.ScenarioContext) {
	sc.Step(`^I connect to the WebSocket endpoint$`, tc.iConnectToTheWebSocket)
	sc.Step(`^I send a (\d+)x(\d+) PNG image as a binary frame$`, tc.iSendABinaryImage)
	sc.Step(`^I send invalid bytes as a binary frame$`, tc.iSendInvalidBytes)
	sc.Step(`^I send the text frame '([^']*)'$`, tc.iSendATextFrame)
	sc.Step(`^I should receive a "([^"]*)" status followed by a "([^"]*)" status$`, tc.iShouldReceiveStatuses)
	sc.Step(`^the final frame should be a (\d+)x(\d+) PNG with a transparent background$`, tc.theFinalFrameShouldBeACutout)
	sc.Step(`^I should receive an error of type "([^"]*)"$`, tc.iShouldReceiveAnError)
	sc.Step(`^every status frame should carry the same request ID$`, tc.everyStatusFrameShouldCarryTheSameRequestID)
}

func (tc *TestContext) iConnectToTheWebSocket() error {
	if tc.Server == nil {
		return errServerNotRunning
	}
	url := "ws" + strings.TrimPrefix(tc.Server.URL, "http") + "/ws/rem-bg"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return fmt.Errorf("dial %s: %w", url, err)
	}
	tc.ws = conn
	return nil
}

func (tc *TestContext) send(messageType int, data []byte) error {
	if tc.ws == nil {
		return errors.New("not connected")
	}
	tc.Frames = nil
	if err := tc.ws.WriteMessage(messageType, data); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return tc.readReplies()
}

// readReplies collects frames until a binary image or an error frame arrives.
func (tc *TestContext) readReplies() error {
	for {
		if err := tc.ws.SetReadDeadline(time.Now().Add(wsReadTimeout)); err != nil {
			return err
		}
		messageType, data, err := tc.ws.ReadMessage()
		if err != nil {
			return fmt.Errorf("read frame after %d frames: %w", len(tc.Frames), err)
		}
		frame := Frame{Binary: messageType == websocket.BinaryMessage, Data: data}
		tc.Frames = append(tc.Frames, frame)
		if frame.Binary {
			return nil
		}
		if resp, err := decodeFrame(frame); err == nil && resp.Type == "error" {
			return nil
		}
	}
}

func decodeFrame(f Frame) (server.WebSocketResponse, error) {
	var resp server.WebSocketResponse
	if f.Binary {
		return resp, errors.New("binary frame")
	}
	err := json.Unmarshal(f.Data, &resp)
	return resp, err
}

func (tc *TestContext) iSendABinaryImage(w, h int) error {
	return tc.send(websocket.BinaryMessage, testutil.EncodePNG(tc.t, testutil.SubjectImage(w, h)))
}

func (tc *TestContext) iSendInvalidBytes() error {
	return tc.send(websocket.BinaryMessage, []byte("definitely not an image"))
}

func (tc *TestContext) iSendATextFrame(text string) error {
	return tc.send(websocket.TextMessage, []byte(text))
}

func (tc *TestContext) statusFrames() ([]server.WebSocketResponse, error) {
	var out []server.WebSocketResponse
	for _, f := range tc.Frames {
		if f.Binary {
			continue
		}
		resp, err := decodeFrame(f)
		if err != nil {
			return nil, fmt.Errorf("bad JSON frame %q: %w", f.Data, err)
		}
		out = append(out, resp)
	}
	return out, nil
}

func (tc *TestContext) iShouldReceiveStatuses(first, second string) error {
	statuses, err := tc.statusFrames()
	if err != nil {
		return err
	}
	if len(statuses) != 2 {
		return fmt.Errorf("expected 2 status frames, got %d", len(statuses))
	}
	if statuses[0].Status != first || statuses[1].Status != second {
		return fmt.Errorf("expected %s then %s, got %s then %s",
			first, second, statuses[0].Status, statuses[1].Status)
	}
	return nil
}

func (tc *TestContext) theFinalFrameShouldBeACutout(w, h int) error {
	if len(tc.Frames) == 0 {
		return errors.New("no frames received")
	}
	last := tc.Frames[len(tc.Frames)-1]
	if !last.Binary {
		return fmt.Errorf("final frame is text: %s", last.Data)
	}
	statuses, err := tc.statusFrames()
	if err != nil {
		return err
	}
	if n := len(statuses); n == 0 || statuses[n-1].Bytes != len(last.Data) {
		return errors.New("completed frame does not announce the image size")
	}
	return checkCutout(last.Data, w, h)
}

func (tc *TestContext) iShouldReceiveAnError(errorType string) error {
	statuses, err := tc.statusFrames()
	if err != nil {
		return err
	}
	if len(statuses) == 0 {
		return errors.New("no frames received")
	}
	last := statuses[len(statuses)-1]
	if last.Type != "error" || last.Status != "error" {
		return fmt.Errorf("expected an error frame, got %+v", last)
	}
	if last.ErrorType != errorType {
		return fmt.Errorf("expected error type %q, got %q (%s)", errorType, last.ErrorType, last.Error)
	}
	return nil
}

func (tc *TestContext) everyStatusFrameShouldCarryTheSameRequestID() error {
	statuses, err := tc.statusFrames()
	if err != nil {
		return err
	}
	if len(statuses) == 0 || statuses[0].RequestID == "" {
		return errors.New("missing request ID")
	}
	for _, s := range statuses[1:] {
		if s.RequestID != statuses[0].RequestID {
			return fmt.Errorf("request ID changed from %s to %s", statuses[0].RequestID, s.RequestID)
		}
	}
	return nil
}
