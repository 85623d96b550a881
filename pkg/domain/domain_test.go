package domain_test

import "time"

var testNow = time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)
