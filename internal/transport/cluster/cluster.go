package cluster

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	domainagent "github.com/alanyang/shard-coordinator/internal/domain/agent"
	"github.com/alanyang/shard-coordinator/internal/service/coordination"
)

// Register mounts the read-only diagnostics routes on the /api group.
func Register(rg *gin.RouterGroup, ins *coordination.Inspector) {
	rg.GET("/agents", listAgents(ins))

	cl := rg.Group("/cluster")
	cl.GET("/dump", dump(ins))
	cl.GET("/self", self(ins))
}

func listAgents(ins *coordination.Inspector) gin.HandlerFunc {
	return func(c *gin.Context) {
		var f coordination.AgentFilter

		if v := c.Query("type"); v != "" {
			t := domainagent.Type(v)
			if !t.Valid() {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid type"})
				return
			}
			f.Type = t
		}
		if v := c.Query("live"); v != "" {
			live, err := strconv.ParseBool(v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid live"})
				return
			}
			f.LiveOnly = live
		}

		agents, err := ins.FindAgents(c.Request.Context(), f)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, agents)
	}
}

func dump(ins *coordination.Inspector) gin.HandlerFunc {
	return func(c *gin.Context) {
		tree, err := ins.Tree(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.String(http.StatusOK, tree.String())
	}
}

func self(ins *coordination.Inspector) gin.HandlerFunc {
	return func(c *gin.Context) {
		views, err := ins.Local(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, views)
	}
}
