// Copyright SAP SE
// SPDX-License-Identifier: Apache-2.0

package db

import (
	"testing"

	"github.com/cobaltcore-dev/cortex-isolation/pkg/conf"
	testlibDB "github.com/cobaltcore-dev/cortex-isolation/pkg/db/testing"
	"github.com/cobaltcore-dev/cortex-isolation/pkg/monitoring"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type MockTable struct {
	ID   int    `db:"id,primarykey"`
	Name string `db:"name"`
}

func (m MockTable) TableName() string {
	return "mock_table"
}

type OtherTable struct {
	Key string `db:"key,primarykey"`
}

func (OtherTable) TableName() string {
	return "other_table"
}

func TestDB_CreateTable(t *testing.T) {
	dbEnv := testlibDB.SetupDBEnv(t)
	db := NewDB(dbEnv.DbMap)
	defer dbEnv.Close()

	if db.TableExists(MockTable{}) {
		t.Fatal("expected table to not exist yet")
	}
	err := db.CreateTable(db.AddTable(MockTable{}), db.AddTable(OtherTable{}))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !db.TableExists(MockTable{}) {
		t.Fatal("expected table to exist")
	}
	if !db.TableExists(OtherTable{}) {
		t.Fatal("expected other table to exist")
	}
	// Creating the same table twice is a no-op.
	if err := db.CreateTable(db.AddTable(MockTable{})); err != nil {
		t.Fatalf("expected no error on second create, got %v", err)
	}
}

func TestReplaceAll(t *testing.T) {
	dbEnv := testlibDB.SetupDBEnv(t)
	db := NewDB(dbEnv.DbMap)
	defer dbEnv.Close()

	if err := db.CreateTable(db.AddTable(MockTable{})); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	for _, record := range []MockTable{{ID: 1, Name: "record1"}, {ID: 2, Name: "record2"}} {
		if err := db.Insert(&record); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	}

	newRecords := []MockTable{
		{ID: 1, Name: "new_record1"},
		{ID: 4, Name: "new_record2"},
	}
	if err := ReplaceAll(db, newRecords...); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	var records []MockTable
	if _, err := db.Select(&records, "SELECT * FROM mock_table ORDER BY id"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].ID != 1 || records[0].Name != "new_record1" {
		t.Errorf("unexpected first record %+v", records[0])
	}
	if records[1].ID != 4 || records[1].Name != "new_record2" {
		t.Errorf("unexpected second record %+v", records[1])
	}

	// Replacing with nothing empties the table.
	if err := ReplaceAll[MockTable](db); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	count, err := db.SelectInt("SELECT COUNT(*) FROM mock_table")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if count != 0 {
		t.Errorf("expected empty table, got %d rows", count)
	}
}

func TestReplaceAll_RollsBackOnConflict(t *testing.T) {
	dbEnv := testlibDB.SetupDBEnv(t)
	db := NewDB(dbEnv.DbMap)
	defer dbEnv.Close()

	if err := db.CreateTable(db.AddTable(MockTable{})); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if err := db.Insert(&MockTable{ID: 7, Name: "keep"}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	// Duplicate primary keys make the insert fail.
	err := ReplaceAll(db, MockTable{ID: 1, Name: "a"}, MockTable{ID: 1, Name: "b"})
	if err == nil {
		t.Fatal("expected error for duplicate primary keys")
	}
	count, err := db.SelectInt("SELECT COUNT(*) FROM mock_table WHERE id = 7")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if count != 1 {
		t.Errorf("expected previous contents to survive the rollback, got %d rows", count)
	}
}

func TestDB_SelectTimed(t *testing.T) {
	dbEnv := testlibDB.SetupDBEnv(t)
	defer dbEnv.Close()
	registry := monitoring.NewRegistry(conf.MonitoringConfig{})
	monitor := NewDBMonitor(registry)
	db := DB{DbMap: dbEnv.DbMap, monitor: &monitor}

	if err := db.CreateTable(db.AddTable(MockTable{})); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if err := db.Insert(&MockTable{ID: 1, Name: "x"}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	var records []MockTable
	if _, err := db.SelectTimed("test", &records, "SELECT * FROM mock_table"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if n := testutil.CollectAndCount(monitor.selectTimer); n != 1 {
		t.Errorf("expected 1 observed series, got %d", n)
	}
}
