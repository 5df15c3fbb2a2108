// Package http provides Laravel-compatible request and response helpers.
//
// Controller actions dispatched by the router receive a *Request and a
// *Response as the "request" and "response" presets:
//
//	func (c *UserController) Show(req *gohttp.Request, id string) (any, error) {
//	    token := req.BearerToken()
//	    ...
//	}
//
// # Request
//
//	var payload struct{ Name string `json:"name"` }
//	err   := req.Bind(&payload)     // JSON body
//	name  := req.Input("name", "default")
//	page  := req.Query("page", "1")
//	id    := req.RouteParam("id")   // chi route params
//
// # Validation
//
// Validator checks `validate` struct tags (go-playground/validator) and
// reports failures as *ValidationErrors, which the router renders as 422.
//
//	var body struct {
//	    Email string `json:"email" validate:"required,email"`
//	}
//	if err := validator.Bind(req, &body); err != nil {
//	    return nil, err
//	}
//
// # Response
//
//	res.Success(v)                  // 200 {"data": v}
//	res.Created(v)                  // 201 {"data": v}
//	res.NoContent()                 // 204
//	res.Error(http.StatusBadRequest, "bad input")
//	res.NotFound()                  // 404 {"message": "Not found."}
//	res.ValidationError(errs)       // 422 {"errors": {"field": ["msg"]}}
package http
