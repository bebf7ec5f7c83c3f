package repo

import "testing"

func TestEvictionVictimsOverCapacity(t *testing.T) {
	// От новых к старым, как отдаёт выборка по sent_at DESC.
	urls := []string{"u7", "u6", "u5", "u4", "u3", "u2", "u1"}

	victims := evictionVictims(urls, 5)
	if len(victims) != 2 {
		t.Fatalf("ожидали двух жертв, получили %v", victims)
	}
	if victims[0] != "u2" || victims[1] != "u1" {
		t.Fatalf("вытесняться должны самые старые записи, получили %v", victims)
	}
	if kept := len(urls) - len(victims); kept != 5 {
		t.Fatalf("после вытеснения должно остаться ровно %d записей, остаётся %d", 5, kept)
	}
}

func TestEvictionVictimsWithinCapacity(t *testing.T) {
	if victims := evictionVictims([]string{"u2", "u1"}, 5); victims != nil {
		t.Fatalf("в пределах вместимости вытеснять нечего, получили %v", victims)
	}
	if victims := evictionVictims([]string{"u5", "u4", "u3", "u2", "u1"}, 5); victims != nil {
		t.Fatalf("ровно на вместимости вытеснять нечего, получили %v", victims)
	}
	if victims := evictionVictims(nil, 5); victims != nil {
		t.Fatalf("пустое хранилище не даёт жертв, получили %v", victims)
	}
}
