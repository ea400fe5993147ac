package service

import (
	"os"
	"testing"

	"github.com/mkachanov/marketplace-backend/internal/logger"
)

func TestMain(m *testing.M) {
	logger.Init("error")
	os.Exit(m.Run())
}
