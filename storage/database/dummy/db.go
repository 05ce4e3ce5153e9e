package dummydb

import (
	"sync"

	"github.com/tuyishimwe/umurinzi/core/alert"
	"github.com/tuyishimwe/umurinzi/core/risk"
	"github.com/tuyishimwe/umurinzi/core/student"
)

type (
	DB struct {
		student *studentTable
		flag    *flagTable
		message *messageTable
	}

	studentTable struct {
		sync.RWMutex
		table       map[string]*student.Student
		attendance  map[string][]student.AttendanceRecord
		performance map[string][]student.PerformanceRecord
	}

	flagTable struct {
		sync.RWMutex
		table map[string]*risk.Flag
	}

	messageTable struct {
		sync.RWMutex
		table map[string]*alert.Message
	}
)

func Open() (*DB, error) {
	db := &DB{
		student: &studentTable{
			table:       make(map[string]*student.Student),
			attendance:  make(map[string][]student.AttendanceRecord),
			performance: make(map[string][]student.PerformanceRecord),
		},
		flag:    &flagTable{table: make(map[string]*risk.Flag)},
		message: &messageTable{table: make(map[string]*alert.Message)},
	}
	return db, nil
}
