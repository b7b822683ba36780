package configdef

import "github.com/tauraamui/xerror"

var ErrConfigAlreadyExists = xerror.New("config file already exists")

type Resolver interface {
	Resolve() (Values, error)
}

type Creator interface {
	Create() error
}

type Destroyer interface {
	Destroy() error
}

type CreateResolver interface {
	Creator
	Resolver
}
