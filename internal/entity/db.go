package entity

// Re-export common types from the common package for backward compatibility.

import (
	"sitegate/internal/entity/common"
)

// Type aliases for common types
type Meta = common.Meta
type BaseParams = common.BaseParams
