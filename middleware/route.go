package middleware

import (
	"PChat/global"
	midsec "PChat/middleware/security"

	"github.com/gin-gonic/gin"
)

type RouteOpt struct {
	IsAuth bool
}

func gateOptions() *midsec.Options {
	return midsec.DefaultOptions(global.JwtOptions())
}

func POST(r gin.IRoutes, path string, handler gin.HandlerFunc, opt RouteOpt) {
	if opt.IsAuth {
		r.POST(path, midsec.Middleware(gateOptions()), handler)
	} else {
		r.POST(path, handler)
	}
}

func GET(r gin.IRoutes, path string, handler gin.HandlerFunc, opt RouteOpt) {
	if opt.IsAuth {
		r.GET(path, midsec.Middleware(gateOptions()), handler)
	} else {
		r.GET(path, handler)
	}
}
