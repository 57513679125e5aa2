package syncdto

import (
	"encoding/json"
	"testing"
)

func TestInboundAnalysis(t *testing.T) {
	raw := `{"type":"analysis","engineId":"sf","finalShapes":[
		{"from":"g1","to":"f3","color":"blue","rank":1,"score":0.35},
		{"orig":"b1","dest":"c3","brush":"green","rank":2,"score":"M3"},
		{"from":"d2","to":"d4","rank":3,"score":{"cp":-120}},
		{"from":"e2","to":"e4","rank":4,"score":"#-2"},
		{"from":"c2","to":"c4","rank":5}
	]}`
	var m Inbound
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !m.IsAnalysis() || len(m.FinalShapes) != 5 {
		t.Fatalf("inbound = %+v", m)
	}
	s := m.FinalShapes
	if s[1].From != "b1" || s[1].To != "c3" || s[1].Color != "green" {
		t.Fatalf("orig/dest alias: %+v", s[1])
	}
	labels := []string{"+0.35", "M3", "-1.20", "M-2"}
	for i, want := range labels {
		if s[i].Score == nil || s[i].Score.Label() != want {
			t.Fatalf("shape %d score = %+v want %s", i, s[i].Score, want)
		}
	}
	if s[4].Score != nil {
		t.Fatalf("missing score should stay nil")
	}
}

func TestInboundControls(t *testing.T) {
	var m Inbound
	if err := json.Unmarshal([]byte(`{"type":"set_turn","color":"b"}`), &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if m.Type != TypeSetTurn || m.Color != "b" || m.IsAnalysis() {
		t.Fatalf("inbound = %+v", m)
	}
}

func TestBoardUpdateShape(t *testing.T) {
	msg := BoardUpdate{Type: TypeBoardUpdate, Data: BoardData{
		GameID:  "g1",
		Pieces:  map[string]string{"e1": "wK"},
		Flags:   Flags{BoardFlipped: true},
		Variant: "standard",
	}}
	b, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var generic map[string]any
	if err := json.Unmarshal(b, &generic); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	data := generic["data"].(map[string]any)
	flags := data["flags"].(map[string]any)
	if generic["type"] != "board_update" || data["gameId"] != "g1" || flags["boardFlipped"] != true {
		t.Fatalf("wire shape = %s", b)
	}
	if _, ok := data["boardLayout"]; ok {
		t.Fatalf("boardLayout should be omitted for standard boards")
	}
}
