package domain

import "github.com/devgateway/dozer-model/internal/errx"

const (
	CodeMappedSuperclass   errx.Code = "MAPPED_SUPERCLASS_WITHOUT_ENTITY"
	CodePropertyUndeclared errx.Code = "PROPERTY_NOT_DECLARED"
	CodeNoSession          errx.Code = "NO_SESSION"
	CodeNoMetadata         errx.Code = "NO_METADATA"
	CodeOwnerNotEntity     errx.Code = "OWNER_NOT_ENTITY"
	CodeUnknownRole        errx.Code = "UNKNOWN_COLLECTION_ROLE"
	CodeUnknownEntity      errx.Code = "UNKNOWN_ENTITY"
	CodeLazyInit           errx.Code = "LAZY_INITIALIZATION"
	CodeInvalidDefinition  errx.Code = "INVALID_PROPERTY_DEFINITION"
	CodeProxyMismatch      errx.Code = "PROXY_TYPE_MISMATCH"
	CodeTransientEntity    errx.Code = "TRANSIENT_ENTITY"
	CodeModelNotFound      errx.Code = "MODEL_NOT_FOUND"
	CodeEntityNotFound     errx.Code = "ENTITY_NOT_FOUND"
	CodeUnaddressable      errx.Code = "UNADDRESSABLE_ENTITY"
)

var (
	// Configuration errors: the mapping is wrong and must be fixed.
	ErrMappedSuperclassWithoutEntity = errx.NewSys(CodeMappedSuperclass, "mapped superclass without a parent entity is not allowed")
	ErrPropertyNotDeclared           = errx.NewSys(CodePropertyUndeclared, "property is not declared in the owner's type hierarchy")
	ErrOwnerNotEntity                = errx.NewSys(CodeOwnerNotEntity, "collection owner has no entity metadata")
	ErrUnknownRole                   = errx.NewSys(CodeUnknownRole, "no collection persister for role")
	ErrProxyMismatch                 = errx.NewSys(CodeProxyMismatch, "proxy does not match the entity persister")

	// Expected conditions.
	ErrNoSession          = errx.NewBiz(CodeNoSession, "no session available")
	ErrNoMetadata         = errx.NewBiz(CodeNoMetadata, "type is not a mapped entity")
	ErrUnknownEntity      = errx.NewBiz(CodeUnknownEntity, "unknown entity")
	ErrLazyInitialization = errx.NewBiz(CodeLazyInit, "could not initialize lazy state, no session")
	ErrInvalidDefinition  = errx.NewBiz(CodeInvalidDefinition, "invalid property definition")
	ErrTransientEntity    = errx.NewBiz(CodeTransientEntity, "entity has no identifier")
	ErrModelNotFound      = errx.NewBiz(CodeModelNotFound, "model not found")
	ErrEntityNotFound     = errx.NewBiz(CodeEntityNotFound, "entity not found")
	ErrUnaddressable      = errx.NewBiz(CodeUnaddressable, "entity must be reached through a pointer")
)
